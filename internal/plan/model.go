package plan

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type MembershipPlan struct {
	ID                       int             `db:"id" json:"id"`
	Name                     string          `db:"name" json:"name"`
	Description              string          `db:"description" json:"description"`
	BasePrice                decimal.Decimal `db:"base_price" json:"base_price"`
	DiscountPercent          decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	DurationDays             int             `db:"duration_days" json:"duration_days"`
	PersonalTrainingSessions int             `db:"personal_training_sessions" json:"personal_training_sessions"`
	Features                 pq.StringArray  `db:"features" json:"features"`
	IsActive                 bool            `db:"is_active" json:"is_active"`
	IsPopular                bool            `db:"is_popular" json:"is_popular"`
	MemberCount              int             `db:"member_count" json:"member_count"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

// Statistics is a read model rebuilt from the member roster on every call.
type Statistics struct {
	PlanID         int             `json:"plan_id"`
	MemberCount    int             `json:"member_count"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
}

// PlanInput carries the editable fields of a plan.
type PlanInput struct {
	Name                     string          `json:"name" validate:"required,min=2,max=255"`
	Description              string          `json:"description" validate:"max=2000"`
	BasePrice                decimal.Decimal `json:"base_price"`
	DiscountPercent          decimal.Decimal `json:"discount_percent"`
	DurationDays             int             `json:"duration_days" validate:"gte=1,lte=3660"`
	PersonalTrainingSessions int             `json:"personal_training_sessions" validate:"gte=0"`
	Features                 []string        `json:"features" validate:"dive,required,max=255"`
	IsActive                 *bool           `json:"is_active,omitempty"`
	IsPopular                bool            `json:"is_popular"`
}

// PlanView is a plan together with its price breakdown as shown on the
// plan-selection and admin screens.
type PlanView struct {
	MembershipPlan
	Quote          Quote           `json:"pricing"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
}
