// Package backend talks to the reminder backend over REST and keeps the
// local view in sync through its websocket change feed.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	apperrors "github.com/AAs6395/medremind/internal/errors"
	"github.com/AAs6395/medremind/internal/reminder"
)

// Config holds client connection settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is the REST client for the reminder backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]reminder.Reminder]
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "backend-list",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Backend breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[[]reminder.Reminder](settings),
		logger:     logger,
	}
}

// ListReminders fetches the current reminder set. List calls run through
// a circuit breaker so a dead backend fails fast instead of stacking up
// timeouts on every refresh.
func (c *Client) ListReminders(ctx context.Context) ([]reminder.Reminder, error) {
	items, err := c.breaker.Execute(func() ([]reminder.Reminder, error) {
		var out []reminder.Reminder
		if err := c.do(ctx, http.MethodGet, "/reminders", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.Wrap(err, apperrors.ErrBackendUnavailable.Code, "backend circuit open")
		}
		return nil, err
	}
	return items, nil
}

// MarkNotified acknowledges a fired reminder. Best effort, callers never
// retry a failed acknowledgement.
func (c *Client) MarkNotified(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/reminders/"+url.PathEscape(id)+"/notify", nil, nil)
}

// CreateReminder registers a reminder and returns it with the id the
// backend assigned.
func (c *Client) CreateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	var out reminder.Reminder
	if err := c.do(ctx, http.MethodPost, "/reminders", r, &out); err != nil {
		return reminder.Reminder{}, err
	}
	return out, nil
}

// DeleteReminder removes a reminder from the backend.
func (c *Client) DeleteReminder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/reminders/"+url.PathEscape(id), nil, nil)
}

// Login exchanges the backend password for a bearer token.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"password": password}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Ping checks backend liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrRequestFailed.Code, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrRequestFailed.Code, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "medremind-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrBackendUnavailable.Code, "backend request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrReminderNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(resp.Body)
		return apperrors.New(apperrors.ErrRequestFailed.Code,
			fmt.Sprintf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(data))))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Wrap(err, apperrors.ErrRequestFailed.Code, "failed to decode response")
		}
	}
	return nil
}
