package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// State is the desktop notification permission state.
type State int

const (
	// StateUnsupported means the platform has no notification support.
	StateUnsupported State = iota
	// StateDefault means permission has not been requested yet.
	StateDefault
	// StateGranted means notifications may be shown.
	StateGranted
	// StateDenied means notifications must be suppressed.
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateUnsupported:
		return "unsupported"
	case StateDefault:
		return "default"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// RequestFunc performs the platform permission request and reports the
// resulting state.
type RequestFunc func(ctx context.Context) State

// Gate tracks notification permission for the process. The permission
// request runs at most once; whatever state it resolves to is final for
// the lifetime of the agent.
type Gate struct {
	mu        sync.Mutex
	state     State
	requested bool
	pending   chan struct{}
	request   RequestFunc
	logger    *zap.Logger
}

func NewGate(request RequestFunc, logger *zap.Logger) *Gate {
	return &Gate{
		state:   StateDefault,
		request: request,
		logger:  logger,
	}
}

// State reports the current permission state without prompting.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Resolve returns the permission state, running the one-shot request if
// nobody has triggered it yet. Concurrent callers share the in-flight
// request rather than issuing their own.
func (g *Gate) Resolve(ctx context.Context) State {
	g.mu.Lock()
	if g.requested && g.pending == nil {
		state := g.state
		g.mu.Unlock()
		return state
	}

	if g.pending != nil {
		wait := g.pending
		g.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return StateDefault
		}
		g.mu.Lock()
		state := g.state
		g.mu.Unlock()
		return state
	}

	g.requested = true
	done := make(chan struct{})
	g.pending = done
	g.mu.Unlock()

	state := g.request(ctx)

	g.mu.Lock()
	g.state = state
	g.pending = nil
	g.mu.Unlock()
	close(done)

	g.logger.Info("Notification permission resolved", zap.String("state", state.String()))
	return state
}

// ProbeRequest builds the default RequestFunc: it sends a priming
// notification and classifies the outcome. A clean send means the
// platform will show banners, an unsupported error means it never can,
// and anything else is treated as denied.
func ProbeRequest(logger *zap.Logger) RequestFunc {
	return func(ctx context.Context) State {
		err := beeep.Notify("MedRemind", "Reminder alerts are enabled", "")
		switch {
		case err == nil:
			return StateGranted
		case errors.Is(err, beeep.ErrUnsupported):
			return StateUnsupported
		default:
			logger.Warn("Notification probe failed", zap.Error(err))
			return StateDenied
		}
	}
}
