package renewal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Transitions(t *testing.T) {
	legal := [][2]State{
		{StateSelecting, StateConfirming},
		{StateSelecting, StateFailed},
		{StateConfirming, StateDirectSucceeded},
		{StateConfirming, StateGatewayRedirected},
		{StateConfirming, StateFailed},
		{StateDirectSucceeded, StateCompleted},
		{StateGatewayRedirected, StateCompleted},
		{StateGatewayRedirected, StateFailed},
	}
	for _, tr := range legal {
		assert.True(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]State{
		{StateSelecting, StateCompleted},
		{StateConfirming, StateCompleted},
		{StateGatewayRedirected, StateDirectSucceeded},
		{StateCompleted, StateFailed},
		{StateFailed, StateConfirming},
	}
	for _, tr := range illegal {
		assert.False(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateGatewayRedirected.Terminal())
}

func TestAttempt_Advance(t *testing.T) {
	a := newAttempt(7)
	assert.NoError(t, a.advance(StateConfirming))
	assert.Error(t, a.advance(StateCompleted))
	assert.Equal(t, StateConfirming, a.State)

	a.fail("declined")
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, "declined", a.FailureReason)
}

func TestPaymentFailure(t *testing.T) {
	pf := &PaymentFailure{Reason: "insufficient wallet balance", Err: assert.AnError}
	assert.Equal(t, "payment failed: insufficient wallet balance", pf.Error())
	assert.ErrorIs(t, pf, assert.AnError)
}
