package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPending, StatusFailed}:       true,
		{StatusProcessing, StatusCompleted}: true,
		{StatusProcessing, StatusFailed}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition("SHIPPED", StatusPending))
}

func TestAllowedTransitions_NeverNil(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, "UNKNOWN"} {
		got := AllowedTransitions(s)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}

	got := AllowedTransitions(StatusPending)
	got[0] = StatusCompleted
	assert.Equal(t, []Status{StatusProcessing, StatusFailed}, AllowedTransitions(StatusPending))
}

func TestTransition(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	base := Order{OrderID: "o-1", Status: StatusPending, UpdatedAt: now.Add(-time.Hour)}

	t.Run("pending to processing", func(t *testing.T) {
		got, err := Transition(base, TransitionRequest{Status: StatusProcessing}, now)
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, got.Status)
		assert.Equal(t, now, got.UpdatedAt)
		assert.Empty(t, got.ErrorMessage)
		assert.Equal(t, StatusPending, base.Status)
	})

	t.Run("failed records the message", func(t *testing.T) {
		got, err := Transition(base, TransitionRequest{Status: StatusFailed, ErrorMessage: "  printer jam "}, now)
		require.NoError(t, err)
		assert.Equal(t, "printer jam", got.ErrorMessage)
	})

	t.Run("failed without a message gets the default", func(t *testing.T) {
		got, err := Transition(base, TransitionRequest{Status: StatusFailed}, now)
		require.NoError(t, err)
		assert.Equal(t, defaultFailureMessage, got.ErrorMessage)
	})

	t.Run("error message rejected for non failed targets", func(t *testing.T) {
		_, err := Transition(base, TransitionRequest{Status: StatusProcessing, ErrorMessage: "nope"}, now)
		assert.ErrorIs(t, err, ErrErrorMessageNotAllowed)
	})

	t.Run("terminal orders reject everything", func(t *testing.T) {
		done := base
		done.Status = StatusCompleted
		_, err := Transition(done, TransitionRequest{Status: StatusPending}, now)

		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, StatusCompleted, te.Current)
		assert.Equal(t, StatusPending, te.Requested)
		assert.NotNil(t, te.Allowed)
		assert.Empty(t, te.Allowed)
		assert.Contains(t, err.Error(), "cannot transition from COMPLETED to PENDING")
	})

	t.Run("skipping processing is invalid", func(t *testing.T) {
		_, err := Transition(base, TransitionRequest{Status: StatusCompleted}, now)
		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, []Status{StatusProcessing, StatusFailed}, te.Allowed)
	})
}
