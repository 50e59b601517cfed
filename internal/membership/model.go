package membership

import (
	"errors"
	"time"

	"gymflow/internal/payment"
	"gymflow/internal/plan"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotDirectMethod      = errors.New("payment method does not settle directly")
)

// Subscription is a member's current window. CurrentPlanID may point at a
// plan that no longer exists.
type Subscription struct {
	MemberID      int       `db:"member_id" json:"member_id"`
	CurrentPlanID *int      `db:"current_plan_id" json:"current_plan_id"`
	PlanStartDate time.Time `db:"plan_start_date" json:"plan_start_date"`
	PlanEndDate   time.Time `db:"plan_end_date" json:"plan_end_date"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// RenewRequest is a direct renewal for an already resolved plan.
type RenewRequest struct {
	MemberID int
	Plan     plan.MembershipPlan
	Method   payment.Method
}

// Renewal is the outcome of a settled renewal.
type Renewal struct {
	Subscription *Subscription   `json:"subscription"`
	Payment      payment.Payment `json:"payment"`
}

// Overview is what the member dashboard shows.
type Overview struct {
	MemberID     int                  `json:"member_id"`
	Subscription *Subscription        `json:"subscription"`
	Plan         *plan.MembershipPlan `json:"plan"`
	Pricing      *plan.Quote          `json:"pricing,omitempty"`
	Window       *Window              `json:"window,omitempty"`
}
