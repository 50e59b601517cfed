package membership

import (
	"context"
	"time"

	"gymflow/internal/payment"
)

type Repository interface {
	Get(ctx context.Context, memberID int) (*Subscription, error)
	// RenewWithPayment records a settled payment and the new window in one
	// transaction.
	RenewWithPayment(ctx context.Context, p *payment.Payment, sub *Subscription) error
	// SettleGatewayPayment marks a PENDING payment PAID and opens the window
	// it paid for, starting at paidAt.
	SettleGatewayPayment(ctx context.Context, paymentID int, transactionID string, paidAt time.Time) (*Renewal, error)
}
