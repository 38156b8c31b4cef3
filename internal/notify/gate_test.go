package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGate_RequestAtMostOnce(t *testing.T) {
	var calls atomic.Int32
	gate := NewGate(func(ctx context.Context) State {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		return StateGranted
	}, zap.NewNop())

	var wg sync.WaitGroup
	results := make([]State, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gate.Resolve(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "the permission request must run once")
	for _, state := range results {
		assert.Equal(t, StateGranted, state)
	}
}

func TestGate_DeniedIsTerminal(t *testing.T) {
	var calls atomic.Int32
	gate := NewGate(func(ctx context.Context) State {
		calls.Add(1)
		return StateDenied
	}, zap.NewNop())

	assert.Equal(t, StateDenied, gate.Resolve(context.Background()))
	assert.Equal(t, StateDenied, gate.Resolve(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateDenied, gate.State())
}

func TestGate_StateBeforePrompt(t *testing.T) {
	gate := NewGate(func(ctx context.Context) State { return StateGranted }, zap.NewNop())
	assert.Equal(t, StateDefault, gate.State())
}

func TestGate_WaiterHonorsContext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gate := NewGate(func(ctx context.Context) State {
		close(entered)
		<-release
		return StateGranted
	}, zap.NewNop())

	first := make(chan State, 1)
	go func() {
		first <- gate.Resolve(context.Background())
	}()
	<-entered

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, StateDefault, gate.Resolve(cancelled), "a cancelled waiter reports unresolved")

	close(release)
	require.Equal(t, StateGranted, <-first)
	assert.Equal(t, StateGranted, gate.Resolve(context.Background()))
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateUnsupported: "unsupported",
		StateDefault:     "default",
		StateGranted:     "granted",
		StateDenied:      "denied",
		State(42):        "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
