package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLegalTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to Status
		by       Actor
	}{
		{StatusPlaced, StatusPaid, ActorPaymentWebhook},
		{StatusPlaced, StatusCancelled, ActorCustomer},
		{StatusPlaced, StatusCancelled, ActorSystem},
		{StatusPaid, StatusCancelled, ActorAdmin},
		{StatusPaid, StatusFulfilled, ActorSystem},
		{StatusFulfilled, StatusShipped, ActorCarrierWebhook},
		{StatusShipped, StatusDelivered, ActorCarrierWebhook},
		{StatusDelivered, StatusReturnRequested, ActorCustomer},
		{StatusReturnRequested, StatusReturned, ActorSystem},
		{StatusReturnRequested, StatusDelivered, ActorAdmin},
	}
	for _, c := range cases {
		require.NoError(t, CanTransition(c.from, c.to, c.by), "%s -> %s by %s", c.from, c.to, c.by)
	}
}

func TestIllegalTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to Status
	}{
		{StatusPlaced, StatusFulfilled},
		{StatusPlaced, StatusDelivered},
		{StatusPaid, StatusPlaced},
		{StatusFulfilled, StatusCancelled},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusReturned},
		{StatusCancelled, StatusPlaced},
		{StatusReturned, StatusDelivered},
	}
	for _, c := range cases {
		err := CanTransition(c.from, c.to, ActorAdmin)
		require.Error(t, err, "%s -> %s should be illegal", c.from, c.to)
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		require.Equal(t, c.from, te.From)
		require.Equal(t, c.to, te.To)
	}
}

func TestActorEnforcement(t *testing.T) {
	t.Parallel()

	// cancel order yang sudah dibayar cuma boleh admin
	require.Error(t, CanTransition(StatusPaid, StatusCancelled, ActorCustomer))
	require.Error(t, CanTransition(StatusPaid, StatusCancelled, ActorSystem))
	require.NoError(t, CanTransition(StatusPaid, StatusCancelled, ActorAdmin))

	// payment webhook tidak boleh nge-drive transisi carrier
	require.Error(t, CanTransition(StatusFulfilled, StatusShipped, ActorPaymentWebhook))
	require.Error(t, CanTransition(StatusShipped, StatusDelivered, ActorCustomer))
}

func TestEffects(t *testing.T) {
	t.Parallel()

	require.Equal(t, EffectNone, Effect(StatusPlaced, StatusPaid))
	require.Equal(t, EffectRelease, Effect(StatusPlaced, StatusCancelled))
	require.Equal(t, EffectRelease, Effect(StatusPaid, StatusCancelled))
	require.Equal(t, EffectCommit, Effect(StatusPaid, StatusFulfilled))
	require.Equal(t, EffectRestock, Effect(StatusReturnRequested, StatusReturned))
	require.Equal(t, EffectNone, Effect(StatusReturnRequested, StatusDelivered))
}

func TestTerminalStates(t *testing.T) {
	t.Parallel()

	require.True(t, IsTerminal(StatusCancelled))
	require.True(t, IsTerminal(StatusReturned))
	require.False(t, IsTerminal(StatusPlaced))
	require.False(t, IsTerminal(StatusDelivered)) // masih bisa return path
}
