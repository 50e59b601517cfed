package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const paymentColumns = `id, member_id, plan_id, duration_days, amount, discount, final_amount, currency, payment_method,
		       status, transaction_id, gateway_ref, failure_reason, invoice_number, created_at, paid_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Payment) error {
	return insert(ctx, r.db, p)
}

// CreateTx inserts p as part of a larger unit of work.
func (r *repository) CreateTx(ctx context.Context, tx *sqlx.Tx, p *Payment) error {
	return insert(ctx, tx, p)
}

func insert(ctx context.Context, q sqlx.QueryerContext, p *Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return q.QueryRowxContext(ctx, `
		INSERT INTO payments (member_id, plan_id, duration_days, amount, discount, final_amount, currency,
		                      payment_method, status, transaction_id, gateway_ref, invoice_number, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		p.MemberID, p.PlanID, p.DurationDays, p.Amount, p.Discount, p.FinalAmount, p.Currency, p.Method,
		p.Status, p.TransactionID, p.GatewayRef, p.InvoiceNumber, p.PaidAt,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int) (*Payment, error) {
	p := &Payment{}
	err := r.db.GetContext(ctx, p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) FindByGatewayRef(ctx context.Context, ref string) (*Payment, error) {
	p := &Payment{}
	err := r.db.GetContext(ctx, p, `SELECT `+paymentColumns+` FROM payments WHERE gateway_ref = $1`, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) ListByMember(ctx context.Context, memberID, limit, offset int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	payments := []Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE member_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, memberID, limit, offset)
	return payments, err
}

// ListPendingByMember returns the member's payments still waiting on a gateway.
func (r *repository) ListPendingByMember(ctx context.Context, memberID int) ([]Payment, error) {
	payments := []Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE member_id = $1 AND status = 'PENDING'
		ORDER BY id`, memberID)
	return payments, err
}

func (r *repository) SetGatewayRef(ctx context.Context, id int, ref string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payments SET gateway_ref = $1 WHERE id = $2`, ref, id)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrPaymentNotFound)
}

// MarkCancelled closes a PENDING payment with a reason.
func (r *repository) MarkCancelled(ctx context.Context, id int, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'CANCELLED', failure_reason = $1
		WHERE id = $2 AND status = 'PENDING'`, reason, id)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrNotPending)
}

// MarkPaidTx settles a PENDING payment. A payment that is not pending is left
// untouched and ErrNotPending is returned.
func (r *repository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id int, transactionID string, paidAt time.Time) (*Payment, error) {
	p := &Payment{}
	err := tx.GetContext(ctx, p, `
		UPDATE payments
		SET status = 'PAID', transaction_id = $1, paid_at = $2, failure_reason = NULL
		WHERE id = $3 AND status = 'PENDING'
		RETURNING `+paymentColumns, transactionID, paidAt, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
