package notify

import (
	"context"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	apperrors "github.com/AAs6395/medremind/internal/errors"
	"github.com/AAs6395/medremind/internal/metrics"
)

// SendFunc delivers one desktop notification.
type SendFunc func(title, body string) error

// Notifier shows desktop notifications subject to the permission gate.
type Notifier struct {
	gate    *Gate
	send    SendFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewNotifier builds a Notifier. A nil send falls back to beeep and a
// non-positive timeout falls back to ten seconds.
func NewNotifier(gate *Gate, send SendFunc, timeout time.Duration, logger *zap.Logger) *Notifier {
	if send == nil {
		send = func(title, body string) error {
			return beeep.Notify(title, body, "")
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		gate:    gate,
		send:    send,
		timeout: timeout,
		logger:  logger,
	}
}

// Show displays a desktop notification when permission allows it.
// Denied and unsupported platforms suppress the banner without error so
// the rest of the alert still goes out.
func (n *Notifier) Show(ctx context.Context, title, body string) error {
	switch n.gate.Resolve(ctx) {
	case StateGranted:
	case StateDenied:
		metrics.RecordNotificationSuppressed("denied")
		n.logger.Debug("Notification suppressed", zap.String("reason", "denied"))
		return nil
	case StateUnsupported:
		metrics.RecordNotificationSuppressed("unsupported")
		n.logger.Debug("Notification suppressed", zap.String("reason", "unsupported"))
		return nil
	default:
		metrics.RecordNotificationSuppressed("unresolved")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	// beeep is not context aware, so run it off to the side and give up
	// after the timeout rather than wedging the alert pipeline.
	result := make(chan error, 1)
	go func() {
		result <- n.send(title, body)
	}()

	select {
	case err := <-result:
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrNotifyFailed.Code, "failed to show notification")
		}
		metrics.RecordNotificationShown()
		return nil
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.ErrNotifyFailed.Code, "notification display timed out")
	}
}
