package payment

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, p *Payment) error
	GetByID(ctx context.Context, id int) (*Payment, error)
	FindByGatewayRef(ctx context.Context, ref string) (*Payment, error)
	ListByMember(ctx context.Context, memberID, limit, offset int) ([]Payment, error)
	ListPendingByMember(ctx context.Context, memberID int) ([]Payment, error)
	SetGatewayRef(ctx context.Context, id int, ref string) error
	MarkCancelled(ctx context.Context, id int, reason string) error
	MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id int, transactionID string, paidAt time.Time) (*Payment, error)
}
