package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type recordingAcker struct {
	mu    sync.Mutex
	ids   []string
	err   error
	gate  chan struct{}
	calls int
}

func (a *recordingAcker) MarkNotified(ctx context.Context, id string) error {
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, id)
	a.calls++
	return a.err
}

func (a *recordingAcker) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ids...)
}

func (a *recordingAcker) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func TestAckSender_DeliversInOrder(t *testing.T) {
	acker := &recordingAcker{}
	sender := NewAckSender(acker, zap.NewNop()).WithLimiter(rate.NewLimiter(rate.Inf, 1))
	sender.Start()

	sender.Submit("rem_1")
	sender.Submit("rem_2")
	sender.Submit("rem_3")
	sender.Stop()

	assert.Equal(t, []string{"rem_1", "rem_2", "rem_3"}, acker.seen())
}

func TestAckSender_FailureIsNotRetried(t *testing.T) {
	acker := &recordingAcker{err: errors.New("backend down")}
	sender := NewAckSender(acker, zap.NewNop()).WithLimiter(rate.NewLimiter(rate.Inf, 1))
	sender.Start()

	sender.Submit("rem_1")
	sender.Stop()

	assert.Equal(t, 1, acker.callCount(), "acks are best effort, one attempt only")
}

func TestAckSender_SubmitNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	acker := &recordingAcker{gate: release}
	sender := NewAckSender(acker, zap.NewNop()).WithLimiter(rate.NewLimiter(rate.Inf, 1))
	sender.Start()

	start := time.Now()
	for i := 0; i < 200; i++ {
		sender.Submit(fmt.Sprintf("rem_%d", i))
	}
	assert.Less(t, time.Since(start), time.Second,
		"a wedged backend must not stall submissions")

	close(release)
	sender.Stop()

	// Everything past the queue capacity was dropped, not delivered.
	assert.LessOrEqual(t, acker.callCount(), 65)
	assert.Greater(t, acker.callCount(), 0)
}

func TestAckSender_StopIdempotent(t *testing.T) {
	sender := NewAckSender(&recordingAcker{}, zap.NewNop())
	sender.Start()
	sender.Stop()
	sender.Stop()
}
