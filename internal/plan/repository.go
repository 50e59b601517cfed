package plan

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrPlanNotFound = errors.New("plan not found")

// Member is a subscriber affected by a plan change.
type Member struct {
	ID    int    `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

const selectPlan = `
		SELECT p.id, p.name, p.description, p.base_price, p.discount_percent, p.duration_days,
		       p.personal_training_sessions, p.features, p.is_active, p.is_popular,
		       p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM member_subscriptions ms
		         WHERE ms.current_plan_id = p.id AND ms.is_active) AS member_count
		FROM membership_plans p`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, onlyActive bool) ([]MembershipPlan, error) {
	plans := []MembershipPlan{}
	err := r.db.SelectContext(ctx, &plans, selectPlan+`
		WHERE ($1 = FALSE OR p.is_active)
		ORDER BY p.base_price ASC, p.id ASC`, onlyActive)
	return plans, err
}

func (r *repository) GetByID(ctx context.Context, id int) (*MembershipPlan, error) {
	p := &MembershipPlan{}
	err := r.db.GetContext(ctx, p, selectPlan+`
		WHERE p.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, in PlanInput) (*MembershipPlan, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	p := &MembershipPlan{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO membership_plans (name, description, base_price, discount_percent, duration_days,
		                              personal_training_sessions, features, is_active, is_popular)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, name, description, base_price, discount_percent, duration_days,
		          personal_training_sessions, features, is_active, is_popular, created_at, updated_at,
		          0 AS member_count
	`, in.Name, in.Description, in.BasePrice, in.DiscountPercent, in.DurationDays,
		in.PersonalTrainingSessions, pq.StringArray(in.Features), active, in.IsPopular,
	).StructScan(p)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, id int, in PlanInput) (*MembershipPlan, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE membership_plans
		SET name = $1,
		    description = $2,
		    base_price = $3,
		    discount_percent = $4,
		    duration_days = $5,
		    personal_training_sessions = $6,
		    features = $7,
		    is_active = COALESCE($8, is_active),
		    is_popular = $9,
		    updated_at = NOW()
		WHERE id = $10
	`, in.Name, in.Description, in.BasePrice, in.DiscountPercent, in.DurationDays,
		in.PersonalTrainingSessions, pq.StringArray(in.Features), in.IsActive, in.IsPopular, id)
	if err := requireAffected(res, err); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repository) SetActive(ctx context.Context, id int, active bool) (*MembershipPlan, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE membership_plans
		SET is_active = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, active, id)
	if err := requireAffected(res, err); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM membership_plans WHERE id = $1`, id)
	return requireAffected(res, err)
}

func (r *repository) CountActiveMembers(ctx context.Context, id int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM member_subscriptions
		WHERE current_plan_id = $1
		  AND is_active
	`, id)
	return count, err
}

func (r *repository) ActiveMembers(ctx context.Context, id int) ([]Member, error) {
	members := []Member{}
	err := r.db.SelectContext(ctx, &members, `
		SELECT u.id, u.name, u.email
		FROM member_subscriptions ms
		JOIN users u ON u.id = ms.member_id
		WHERE ms.current_plan_id = $1
		  AND ms.is_active
		ORDER BY u.id
	`, id)
	return members, err
}

func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPlanNotFound
	}
	return nil
}
