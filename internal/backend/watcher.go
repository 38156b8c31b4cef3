package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ws "github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// Watcher listens on the backend's websocket change feed and refreshes
// the local reminder cache on every change event. The periodic resync
// runs separately (RunResync) so the cache stays current even when the
// feed is disabled or silent.
type Watcher struct {
	wsURL   string
	token   string
	refresh func(ctx context.Context) error
	logger  *zap.Logger
}

func NewWatcher(baseURL, token string, refresh func(context.Context) error, logger *zap.Logger) *Watcher {
	return &Watcher{
		wsURL:   changeFeedURL(baseURL),
		token:   token,
		refresh: refresh,
		logger:  logger,
	}
}

// RunResync refreshes the cache on a fixed interval until ctx is
// cancelled. It is the only sync path when the change feed is disabled
// and the safety net when the feed is up but silent.
func RunResync(ctx context.Context, interval time.Duration, refresh func(context.Context) error, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				logger.Warn("Cache refresh failed",
					zap.String("trigger", "resync"),
					zap.Error(err),
				)
			}
		}
	}
}

// changeFeedURL rewrites an http base URL into the websocket endpoint.
func changeFeedURL(base string) string {
	u := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Run blocks until ctx is cancelled, reconnecting with capped backoff
// whenever the feed drops.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("Backend watcher started", zap.String("url", w.wsURL))

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		connectedAt := time.Now()
		err := w.listen(ctx)
		if ctx.Err() != nil {
			return
		}

		// A connection that held for a while earns a fresh backoff.
		if time.Since(connectedAt) > 30*time.Second {
			backoff = initialBackoff
		}

		w.logger.Warn("Change feed disconnected",
			zap.Error(err),
			zap.Duration("retry_in", backoff),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	opts := &ws.DialOptions{}
	if w.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + w.token}}
	}

	conn, _, err := ws.Dial(ctx, w.wsURL, opts)
	if err != nil {
		return err
	}
	defer conn.Close(ws.StatusNormalClosure, "shutting down")

	w.logger.Info("Connected to change feed", zap.String("url", w.wsURL))

	// Events may have been missed while disconnected.
	w.doRefresh(ctx, "reconnect")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var event struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			w.logger.Debug("Ignoring malformed change event", zap.Error(err))
			continue
		}

		if event.Event == "reminders_changed" {
			w.doRefresh(ctx, "event")
		}
	}
}

func (w *Watcher) doRefresh(ctx context.Context, trigger string) {
	if err := w.refresh(ctx); err != nil {
		w.logger.Warn("Cache refresh failed",
			zap.String("trigger", trigger),
			zap.Error(err),
		)
	}
}
