package plan

import "context"

type Repository interface {
	List(ctx context.Context, onlyActive bool) ([]MembershipPlan, error)
	GetByID(ctx context.Context, id int) (*MembershipPlan, error)
	Create(ctx context.Context, in PlanInput) (*MembershipPlan, error)
	Update(ctx context.Context, id int, in PlanInput) (*MembershipPlan, error)
	SetActive(ctx context.Context, id int, active bool) (*MembershipPlan, error)
	Delete(ctx context.Context, id int) error
	CountActiveMembers(ctx context.Context, id int) (int, error)
	ActiveMembers(ctx context.Context, id int) ([]Member, error)
}
