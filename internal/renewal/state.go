package renewal

import (
	"fmt"
	"time"

	"gymflow/internal/payment"
)

type State string

const (
	StateSelecting         State = "selecting"
	StateConfirming        State = "confirming"
	StateDirectSucceeded   State = "direct_succeeded"
	StateGatewayRedirected State = "gateway_redirected"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

var transitions = map[State][]State{
	StateSelecting:         {StateConfirming, StateFailed},
	StateConfirming:        {StateDirectSucceeded, StateGatewayRedirected, StateFailed},
	StateDirectSucceeded:   {StateCompleted, StateFailed},
	StateGatewayRedirected: {StateCompleted, StateFailed},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Attempt is one renewal as seen by the member.
type Attempt struct {
	MemberID      int            `json:"member_id"`
	PlanID        int            `json:"plan_id,omitempty"`
	Method        payment.Method `json:"payment_method,omitempty"`
	State         State          `json:"state"`
	PaymentID     int            `json:"payment_id,omitempty"`
	GatewayURL    string         `json:"gateway_url,omitempty"`
	PlanEndDate   *time.Time     `json:"plan_end_date,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
}

func newAttempt(memberID int) *Attempt {
	return &Attempt{MemberID: memberID, State: StateSelecting}
}

// attemptFor rebuilds the attempt behind a gateway payment on its return.
func attemptFor(p *payment.Payment) *Attempt {
	return &Attempt{
		MemberID:  p.MemberID,
		PlanID:    p.PlanID,
		Method:    p.Method,
		State:     StateGatewayRedirected,
		PaymentID: p.ID,
	}
}

func (a *Attempt) advance(to State) error {
	if !a.State.CanTransition(to) {
		return fmt.Errorf("renewal: illegal transition %s -> %s", a.State, to)
	}
	a.State = to
	return nil
}

func (a *Attempt) fail(reason string) {
	a.State = StateFailed
	a.FailureReason = reason
}
