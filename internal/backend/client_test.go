package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/AAs6395/medremind/internal/errors"
	"github.com/AAs6395/medremind/internal/reminder"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Timeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestClient_ListReminders(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/reminders", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":        "rem_1",
				"title":     "Aspirin",
				"date_time": due.Format(time.RFC3339),
				"notes":     "with food",
				"notified":  false,
			},
		})
	}))

	items, err := client.ListReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "rem_1", items[0].ID)
	assert.Equal(t, "Aspirin", items[0].Title)
	assert.True(t, items[0].DueAt.Equal(due))
	assert.Equal(t, "with food", items[0].Notes)
	assert.False(t, items[0].Notified)
}

func TestClient_MarkNotified(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.MarkNotified(context.Background(), "rem_9"))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/reminders/rem_9/notify", gotPath)
}

func TestClient_DeleteReminder(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.DeleteReminder(context.Background(), "rem_9"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/reminders/rem_9", gotPath)
}

func TestClient_CreateReminder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reminders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in reminder.Reminder
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "rem_new"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	}))

	created, err := client.CreateReminder(context.Background(), reminder.Reminder{
		Title: "Vitamin D",
		DueAt: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "rem_new", created.ID)
	assert.Equal(t, "Vitamin D", created.Title)
}

func TestClient_Login(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "hunter2", in["password"])

		json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
	}))

	token, err := client.Login(context.Background(), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
}

func TestClient_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	err := client.MarkNotified(context.Background(), "gone")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrReminderNotFound.Code, apperrors.GetCode(err))
}

func TestClient_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.ListReminders(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized.Code, apperrors.GetCode(err))
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	for i := 0; i < 3; i++ {
		_, err := client.ListReminders(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrRequestFailed.Code, apperrors.GetCode(err))
	}

	// The breaker is open now; the next call fails without touching the
	// network.
	_, err := client.ListReminders(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBackendUnavailable.Code, apperrors.GetCode(err))
}
