package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/AAs6395/medremind/internal/errors"
)

func fixedGate(state State) *Gate {
	return NewGate(func(ctx context.Context) State { return state }, zap.NewNop())
}

func TestNotifier_DeniedSuppressesDelivery(t *testing.T) {
	sent := false
	n := NewNotifier(fixedGate(StateDenied), func(title, body string) error {
		sent = true
		return nil
	}, time.Second, zap.NewNop())

	err := n.Show(context.Background(), "Aspirin", "Due in about 5 minutes")
	require.NoError(t, err)
	assert.False(t, sent, "denied permission must not reach the platform")
}

func TestNotifier_UnsupportedSuppressesDelivery(t *testing.T) {
	sent := false
	n := NewNotifier(fixedGate(StateUnsupported), func(title, body string) error {
		sent = true
		return nil
	}, time.Second, zap.NewNop())

	require.NoError(t, n.Show(context.Background(), "Aspirin", "Due now"))
	assert.False(t, sent)
}

func TestNotifier_GrantedDelivers(t *testing.T) {
	var gotTitle, gotBody string
	n := NewNotifier(fixedGate(StateGranted), func(title, body string) error {
		gotTitle, gotBody = title, body
		return nil
	}, time.Second, zap.NewNop())

	require.NoError(t, n.Show(context.Background(), "Aspirin", "Due now"))
	assert.Equal(t, "Aspirin", gotTitle)
	assert.Equal(t, "Due now", gotBody)
}

func TestNotifier_SendFailureWrapped(t *testing.T) {
	n := NewNotifier(fixedGate(StateGranted), func(title, body string) error {
		return errors.New("dbus exploded")
	}, time.Second, zap.NewNop())

	err := n.Show(context.Background(), "Aspirin", "Due now")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotifyFailed.Code, apperrors.GetCode(err))
}

func TestNotifier_DisplayTimeout(t *testing.T) {
	n := NewNotifier(fixedGate(StateGranted), func(title, body string) error {
		time.Sleep(300 * time.Millisecond)
		return nil
	}, 30*time.Millisecond, zap.NewNop())

	err := n.Show(context.Background(), "Aspirin", "Due now")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
