package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymflow/internal/db"
	"gymflow/internal/payment"

	"github.com/jmoiron/sqlx"
)

const subscriptionColumns = `member_id, current_plan_id, plan_start_date, plan_end_date, is_active, updated_at`

type repository struct {
	db       *sqlx.DB
	payments payment.Repository
}

func NewRepository(conn *sqlx.DB, payments payment.Repository) Repository {
	return &repository{db: conn, payments: payments}
}

func (r *repository) Get(ctx context.Context, memberID int) (*Subscription, error) {
	s := &Subscription{}
	err := r.db.GetContext(ctx, s,
		`SELECT `+subscriptionColumns+` FROM member_subscriptions WHERE member_id = $1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repository) RenewWithPayment(ctx context.Context, p *payment.Payment, sub *Subscription) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.payments.CreateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
		return upsert(ctx, tx, sub)
	})
}

func (r *repository) SettleGatewayPayment(ctx context.Context, paymentID int, transactionID string, paidAt time.Time) (*Renewal, error) {
	var out *Renewal
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		p, err := r.payments.MarkPaidTx(ctx, tx, paymentID, transactionID, paidAt)
		if err != nil {
			return err
		}
		sub := newWindow(p.MemberID, p.PlanID, p.DurationDays, paidAt)
		if err := upsert(ctx, tx, sub); err != nil {
			return err
		}
		out = &Renewal{Subscription: sub, Payment: *p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upsert(ctx context.Context, tx *sqlx.Tx, sub *Subscription) error {
	return tx.GetContext(ctx, sub, `
		INSERT INTO member_subscriptions (member_id, current_plan_id, plan_start_date, plan_end_date, is_active, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (member_id) DO UPDATE
		SET current_plan_id = EXCLUDED.current_plan_id,
		    plan_start_date = EXCLUDED.plan_start_date,
		    plan_end_date = EXCLUDED.plan_end_date,
		    is_active = TRUE,
		    updated_at = NOW()
		RETURNING `+subscriptionColumns,
		sub.MemberID, sub.CurrentPlanID, sub.PlanStartDate, sub.PlanEndDate)
}

// newWindow restarts the window at now; remaining days of an earlier
// window are not carried over.
func newWindow(memberID, planID, durationDays int, now time.Time) *Subscription {
	id := planID
	return &Subscription{
		MemberID:      memberID,
		CurrentPlanID: &id,
		PlanStartDate: now,
		PlanEndDate:   now.Add(time.Duration(durationDays) * day),
		IsActive:      true,
	}
}
