package renewal

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSelection  = errors.New("select a plan and a payment method")
	ErrUnknownMember     = errors.New("member not found")
	ErrPlanUnavailable   = errors.New("plan is not available for renewal")
	ErrConcurrentRenewal = errors.New("a renewal is already in progress for this member")
	ErrGatewayInitiation = errors.New("payment gateway could not start the payment")
)

// PaymentFailure ends a renewal attempt. The member has to start over.
type PaymentFailure struct {
	Reason string
	Err    error
}

func (e *PaymentFailure) Error() string {
	return "payment failed: " + e.Reason
}

func (e *PaymentFailure) Unwrap() error {
	return e.Err
}

func gatewayInitiationError(err error) error {
	return fmt.Errorf("%w: %v", ErrGatewayInitiation, err)
}
