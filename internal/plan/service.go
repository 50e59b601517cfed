package plan

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gymflow/internal/logger"
	"gymflow/internal/metrics"
)

// PlanInUseWarning is returned by Delete when active members still hold the
// plan. Nothing is changed until the caller confirms.
type PlanInUseWarning struct {
	PlanID      int
	PlanName    string
	MemberCount int
}

func (w *PlanInUseWarning) Error() string {
	return fmt.Sprintf("plan %q has %d active member(s); confirm to delete it anyway", w.PlanName, w.MemberCount)
}

// Notifier tells members about plan changes that affect them.
type Notifier interface {
	SendPlanNotice(ctx context.Context, email, name, planName, notice string) error
}

// Service is the administrative plan lifecycle.
type Service interface {
	List(ctx context.Context, onlyActive bool) ([]PlanView, error)
	Get(ctx context.Context, id int) (*PlanView, error)
	Create(ctx context.Context, in PlanInput) (*MembershipPlan, error)
	Update(ctx context.Context, id int, in PlanInput) (*MembershipPlan, error)
	Activate(ctx context.Context, id int) (*MembershipPlan, error)
	Deactivate(ctx context.Context, id int) (*MembershipPlan, error)
	Delete(ctx context.Context, id int, confirm bool) error
	RecomputeStatistics(ctx context.Context, id int) (*Statistics, error)
	Resolve(ctx context.Context, id *int) (*MembershipPlan, error)
}

type service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) Service {
	return &service{repo: repo, notifier: notifier}
}

func (s *service) List(ctx context.Context, onlyActive bool) ([]PlanView, error) {
	plans, err := s.repo.List(ctx, onlyActive)
	if err != nil {
		return nil, err
	}

	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		v, err := view(p)
		if err != nil {
			// A row that violates the pricing invariant is skipped rather than
			// failing the whole catalogue.
			logger.Error("skipping plan with invalid pricing", "plan_id", p.ID, "error", err)
			continue
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *service) Get(ctx context.Context, id int) (*PlanView, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return view(*p)
}

func (s *service) Create(ctx context.Context, in PlanInput) (*MembershipPlan, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	logger.Info("plan created", "plan_id", p.ID, "name", p.Name)
	metrics.RecordPlanLifecycle("create")
	return p, nil
}

func (s *service) Update(ctx context.Context, id int, in PlanInput) (*MembershipPlan, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	logger.Info("plan updated", "plan_id", p.ID)
	metrics.RecordPlanLifecycle("update")
	return p, nil
}

// Activate reopens a plan for new sign-ups.
func (s *service) Activate(ctx context.Context, id int) (*MembershipPlan, error) {
	p, err := s.repo.SetActive(ctx, id, true)
	if err != nil {
		return nil, err
	}
	logger.Info("plan activated", "plan_id", id)
	metrics.RecordPlanLifecycle("activate")
	return p, nil
}

// Deactivate closes a plan for new sign-ups. Members already on the plan
// keep access until their window ends.
func (s *service) Deactivate(ctx context.Context, id int) (*MembershipPlan, error) {
	p, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		return nil, err
	}
	logger.Info("plan deactivated", "plan_id", id, "member_count", p.MemberCount)
	metrics.RecordPlanLifecycle("deactivate")

	if p.MemberCount > 0 {
		s.notifyMembers(ctx, p, "This plan is no longer offered for renewal. Your current membership stays valid until it ends.")
	}
	return p, nil
}

func (s *service) Delete(ctx context.Context, id int, confirm bool) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.CountActiveMembers(ctx, id)
	if err != nil {
		return err
	}
	p.MemberCount = count

	if count > 0 && !confirm {
		return &PlanInUseWarning{PlanID: id, PlanName: p.Name, MemberCount: count}
	}

	var affected []Member
	if count > 0 {
		if affected, err = s.repo.ActiveMembers(ctx, id); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("plan deleted", "plan_id", id, "member_count", count, "confirmed", confirm)
	metrics.RecordPlanLifecycle("delete")
	metrics.ForgetPlan(strconv.Itoa(id))

	for _, m := range affected {
		s.notify(ctx, m, p.Name, "This plan has been withdrawn. Please choose a new plan when you renew.")
	}
	return nil
}

func (s *service) RecomputeStatistics(ctx context.Context, id int) (*Statistics, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountActiveMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	p.MemberCount = count

	revenue, err := ProjectedMonthlyRevenue(*p)
	if err != nil {
		return nil, err
	}

	metrics.SetPlanStatistics(strconv.Itoa(id), count, revenue.InexactFloat64())
	return &Statistics{PlanID: id, MemberCount: count, MonthlyRevenue: revenue}, nil
}

// Resolve looks up a member's current plan. A nil or dangling reference
// resolves to no plan rather than an error.
func (s *service) Resolve(ctx context.Context, id *int) (*MembershipPlan, error) {
	if id == nil {
		return nil, nil
	}
	p, err := s.repo.GetByID(ctx, *id)
	if errors.Is(err, ErrPlanNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) notifyMembers(ctx context.Context, p *MembershipPlan, notice string) {
	members, err := s.repo.ActiveMembers(ctx, p.ID)
	if err != nil {
		logger.Error("failed to load members for plan notice", "plan_id", p.ID, "error", err)
		return
	}
	for _, m := range members {
		s.notify(ctx, m, p.Name, notice)
	}
}

func (s *service) notify(ctx context.Context, m Member, planName, notice string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendPlanNotice(ctx, m.Email, m.Name, planName, notice); err != nil {
		logger.Error("failed to queue plan notice", "member_id", m.ID, "error", err)
	}
}

func validateInput(in PlanInput) error {
	if in.DurationDays <= 0 {
		return &InvalidPlanError{Field: "duration_days", Reason: "must be a positive number of days"}
	}
	if in.PersonalTrainingSessions < 0 {
		return &InvalidPlanError{Field: "personal_training_sessions", Reason: "must not be negative"}
	}
	return validatePricing(MembershipPlan{BasePrice: in.BasePrice, DiscountPercent: in.DiscountPercent})
}

func view(p MembershipPlan) (*PlanView, error) {
	q, err := QuoteFor(p)
	if err != nil {
		return nil, err
	}
	revenue := q.FinalPrice.Mul(decimalFromInt(p.MemberCount))
	return &PlanView{MembershipPlan: p, Quote: q, MonthlyRevenue: revenue}, nil
}
