package renewal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymflow/internal/email"
	"gymflow/internal/logger"
	"gymflow/internal/membership"
	"gymflow/internal/metrics"
	"gymflow/internal/payment"
	"gymflow/internal/plan"
	"gymflow/internal/user"
	"gymflow/internal/wallet"

	"github.com/google/uuid"
)

const (
	outcomeCompleted  = "completed"
	outcomeRedirected = "redirected"
	outcomeFailed     = "failed"
	outcomeRejected   = "rejected"
)

type Members interface {
	GetByID(ctx context.Context, userID int) (*user.User, error)
}

type Plans interface {
	Resolve(ctx context.Context, id *int) (*plan.MembershipPlan, error)
}

// Memberships settles renewals against the member's subscription.
type Memberships interface {
	Get(ctx context.Context, memberID int) (*membership.Subscription, error)
	Renew(ctx context.Context, req membership.RenewRequest, now time.Time) (*membership.Renewal, error)
	SettleGatewayPayment(ctx context.Context, paymentID int, transactionID string, now time.Time) (*membership.Renewal, error)
}

// Payments starts and reconciles gateway payments.
type Payments interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.Initiation, error)
	Get(ctx context.Context, id int) (*payment.Payment, error)
	Verify(ctx context.Context, id int, cb payment.Callback) (*payment.Verification, error)
	Cancel(ctx context.Context, id int, reason string) error
	PendingForMember(ctx context.Context, memberID int) ([]payment.Payment, error)
}

type Notifier interface {
	SendRenewalReceipt(ctx context.Context, email, name string, r email.RenewalReceipt) error
}

// Request is what the member picked on the renewal screen.
type Request struct {
	MemberID int
	PlanID   *int
	Method   string
}

type Orchestrator interface {
	Renew(ctx context.Context, req Request) (*Attempt, error)
	// Complete reconciles a gateway return against the payment it belongs to.
	Complete(ctx context.Context, paymentID int, cb payment.Callback) (*Attempt, error)
	// Abort ends a gateway attempt the member or gateway gave up on.
	Abort(ctx context.Context, paymentID int, reason string) (*Attempt, error)
}

type Deps struct {
	Members       Members
	Plans         Plans
	Memberships   Memberships
	Payments      Payments
	Locker        Locker
	Notifier      Notifier
	PublicBaseURL string
}

type orchestrator struct {
	Deps
	now      func() time.Time
	newOwner func() string
}

func NewOrchestrator(deps Deps) Orchestrator {
	return &orchestrator{
		Deps:     deps,
		now:      time.Now,
		newOwner: func() string { return "attempt:" + uuid.NewString() },
	}
}

func (o *orchestrator) Renew(ctx context.Context, req Request) (*Attempt, error) {
	a := newAttempt(req.MemberID)

	sel, err := o.validate(ctx, req)
	if err != nil {
		metrics.RecordRenewal(methodLabel(req.Method), outcomeRejected)
		return nil, err
	}
	method := sel.method
	a.PlanID = sel.plan.ID
	a.Method = method

	ch, err := method.Channel()
	if err != nil {
		return nil, err
	}

	owner := o.newOwner()
	ok, err := o.Locker.Acquire(ctx, req.MemberID, owner)
	if err != nil {
		return nil, fmt.Errorf("acquire renewal lock: %w", err)
	}
	if !ok {
		metrics.RecordRenewal(string(method), outcomeRejected)
		return nil, ErrConcurrentRenewal
	}

	if err := o.supersedeStale(ctx, req.MemberID); err != nil {
		o.release(ctx, req.MemberID, owner)
		if errors.Is(err, ErrConcurrentRenewal) {
			metrics.RecordRenewal(string(method), outcomeRejected)
		}
		return nil, err
	}

	if err := a.advance(StateConfirming); err != nil {
		o.release(ctx, req.MemberID, owner)
		return nil, err
	}

	switch ch {
	case payment.ChannelDirect:
		return o.renewDirect(ctx, a, sel, owner)
	case payment.ChannelGateway:
		return o.renewViaGateway(ctx, a, sel, owner)
	default:
		o.release(ctx, req.MemberID, owner)
		return nil, fmt.Errorf("%w: %s", payment.ErrUnknownMethod, method)
	}
}

// supersedeStale deals with gateway payments still PENDING from attempts whose
// lock has run out. Ones the gateway never took are cancelled; one that
// settled or is still in progress blocks the new renewal.
func (o *orchestrator) supersedeStale(ctx context.Context, memberID int) error {
	pending, err := o.Payments.PendingForMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}

	for i := range pending {
		p := &pending[i]
		v, err := o.Payments.Verify(ctx, p.ID, payment.Callback{Outcome: payment.OutcomeCancel})
		switch {
		case errors.Is(err, payment.ErrNoGateway):
			// The provider is no longer configured, so nothing can settle it.
		case err != nil:
			logger.Warn("could not check stale gateway payment", "payment_id", p.ID, "error", err)
			return ErrConcurrentRenewal
		case v.Settled:
			if _, err := o.apply(ctx, attemptFor(p), p, v); err != nil {
				logger.Error("settling stale gateway payment failed", "payment_id", p.ID, "error", err)
			}
			return ErrConcurrentRenewal
		case v.Pending:
			return ErrConcurrentRenewal
		}

		if err := o.Payments.Cancel(ctx, p.ID, "superseded by a new renewal attempt"); err != nil && !errors.Is(err, payment.ErrNotPending) {
			return err
		}
		logger.Info("stale gateway payment cancelled", "payment_id", p.ID, "member_id", memberID)
	}
	return nil
}

// selection is a validated renewal request.
type selection struct {
	method payment.Method
	plan   *plan.MembershipPlan
	quote  plan.Quote
	member *user.User
}

func (o *orchestrator) validate(ctx context.Context, req Request) (*selection, error) {
	if req.PlanID == nil || strings.TrimSpace(req.Method) == "" {
		return nil, ErrMissingSelection
	}
	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	member, err := o.Members.GetByID(ctx, req.MemberID)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, ErrUnknownMember
	}
	if err != nil {
		return nil, err
	}

	pl, err := o.Plans.Resolve(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	// Deactivated plans keep existing members but take no new renewals.
	if pl == nil || !pl.IsActive {
		return nil, ErrPlanUnavailable
	}

	quote, err := plan.QuoteFor(*pl)
	if err != nil {
		return nil, err
	}
	return &selection{method: method, plan: pl, quote: quote, member: member}, nil
}

func methodLabel(raw string) string {
	m, err := payment.ParseMethod(raw)
	if err != nil {
		return "UNKNOWN"
	}
	return string(m)
}

func (o *orchestrator) renewDirect(ctx context.Context, a *Attempt, sel *selection, owner string) (*Attempt, error) {
	defer o.release(ctx, a.MemberID, owner)

	r, err := o.Memberships.Renew(ctx, membership.RenewRequest{
		MemberID: a.MemberID,
		Plan:     *sel.plan,
		Method:   a.Method,
	}, o.now())
	if err != nil {
		return nil, o.failed(a, err)
	}

	if err := a.advance(StateDirectSucceeded); err != nil {
		return nil, err
	}
	return o.completed(ctx, a, sel.member, sel.plan.Name, r)
}

func (o *orchestrator) renewViaGateway(ctx context.Context, a *Attempt, sel *selection, owner string) (*Attempt, error) {
	pl, member, quote := sel.plan, sel.member, sel.quote

	started, err := o.Payments.Initiate(ctx, payment.InitiateRequest{
		MemberID:     a.MemberID,
		PlanID:       pl.ID,
		PlanName:     pl.Name,
		DurationDays: pl.DurationDays,
		Method:       a.Method,
		Amount:       quote.BasePrice,
		Discount:     quote.Discount,
		FinalAmount:  quote.FinalPrice,
		Customer:     payment.Customer{Name: member.Name, Email: member.Email},
		Callbacks:    payment.CallbacksFor(o.PublicBaseURL),
	})
	if err == nil && started.GatewayURL == "" {
		err = payment.ErrNoRedirect
	}
	if err != nil {
		o.release(ctx, a.MemberID, owner)
		a.fail(err.Error())
		metrics.RecordRenewal(string(a.Method), outcomeFailed)
		logger.Error("gateway renewal could not start",
			"member_id", a.MemberID, "plan_id", pl.ID, "method", a.Method, "error", err)
		return nil, gatewayInitiationError(err)
	}

	// The payment owns the lock until the gateway returns or the TTL runs out.
	if err := a.advance(StateGatewayRedirected); err != nil {
		return nil, err
	}
	a.PaymentID = started.Payment.ID
	a.GatewayURL = started.GatewayURL

	handed, err := o.Locker.Handoff(ctx, a.MemberID, owner, paymentOwner(a.PaymentID))
	if err != nil || !handed {
		logger.Warn("renewal lock was not handed to the payment",
			"member_id", a.MemberID, "payment_id", a.PaymentID, "error", err)
	}

	metrics.RecordRenewal(string(a.Method), outcomeRedirected)
	logger.Info("renewal redirected to gateway",
		"member_id", a.MemberID, "payment_id", a.PaymentID, "method", a.Method)
	return a, nil
}

func (o *orchestrator) Complete(ctx context.Context, paymentID int, cb payment.Callback) (*Attempt, error) {
	if cb.Outcome != payment.OutcomeSuccess {
		return o.Abort(ctx, paymentID, "payment "+cb.Outcome+" at gateway")
	}

	p, err := o.Payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	a := attemptFor(p)

	switch p.Status {
	case payment.StatusPaid:
		return o.alreadySettled(ctx, a)
	case payment.StatusPending:
	default:
		reason := "payment is " + strings.ToLower(string(p.Status))
		if p.FailureReason != nil {
			reason = *p.FailureReason
		}
		a.fail(reason)
		return a, &PaymentFailure{Reason: reason}
	}

	v, err := o.Payments.Verify(ctx, paymentID, cb)
	if err != nil {
		// The payment stays PENDING so a later return or webhook can settle it.
		logger.Error("gateway verification failed", "payment_id", paymentID, "error", err)
		return nil, fmt.Errorf("verify payment %d: %w", paymentID, err)
	}
	return o.apply(ctx, a, p, v)
}

func (o *orchestrator) Abort(ctx context.Context, paymentID int, reason string) (*Attempt, error) {
	p, err := o.Payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	a := attemptFor(p)

	switch p.Status {
	case payment.StatusPaid:
		return o.alreadySettled(ctx, a)
	case payment.StatusPending:
	default:
		a.fail(reason)
		return a, nil
	}

	// A late cancel must not undo a payment the gateway already took.
	v, err := o.Payments.Verify(ctx, paymentID, payment.Callback{Outcome: payment.OutcomeCancel})
	if err == nil && v.Settled {
		return o.apply(ctx, a, p, v)
	}

	if err := o.Payments.Cancel(ctx, paymentID, reason); err != nil && !errors.Is(err, payment.ErrNotPending) {
		return nil, err
	}
	o.release(ctx, p.MemberID, paymentOwner(p.ID))
	a.fail(reason)
	metrics.RecordRenewal(string(p.Method), outcomeFailed)
	logger.Info("gateway renewal aborted", "payment_id", paymentID, "reason", reason)
	return a, nil
}

func (o *orchestrator) apply(ctx context.Context, a *Attempt, p *payment.Payment, v *payment.Verification) (*Attempt, error) {
	switch {
	case v.Settled:
	case v.Pending:
		return a, nil
	default:
		reason := v.Reason
		if reason == "" {
			reason = "payment was not completed"
		}
		if err := o.Payments.Cancel(ctx, p.ID, reason); err != nil && !errors.Is(err, payment.ErrNotPending) {
			logger.Error("failed to cancel unsettled payment", "payment_id", p.ID, "error", err)
		}
		o.release(ctx, p.MemberID, paymentOwner(p.ID))
		return nil, o.failed(a, &PaymentFailure{Reason: reason})
	}

	r, err := o.Memberships.SettleGatewayPayment(ctx, p.ID, v.TransactionID, o.now())
	if errors.Is(err, payment.ErrNotPending) {
		// Settled concurrently by the other return path.
		return o.alreadySettled(ctx, a)
	}
	if err != nil {
		logger.Error("settling verified payment failed",
			"payment_id", p.ID, "transaction_id", v.TransactionID, "error", err)
		return nil, fmt.Errorf("settle payment %d: %w", p.ID, err)
	}
	o.release(ctx, p.MemberID, paymentOwner(p.ID))

	var member *user.User
	if m, err := o.Members.GetByID(ctx, p.MemberID); err == nil {
		member = m
	}
	return o.completed(ctx, a, member, o.planName(ctx, p.PlanID), r)
}

func (o *orchestrator) alreadySettled(ctx context.Context, a *Attempt) (*Attempt, error) {
	o.release(ctx, a.MemberID, paymentOwner(a.PaymentID))
	a.State = StateCompleted
	if sub, err := o.Memberships.Get(ctx, a.MemberID); err == nil {
		end := sub.PlanEndDate
		a.PlanEndDate = &end
	}
	return a, nil
}

func (o *orchestrator) completed(ctx context.Context, a *Attempt, member *user.User, planName string, r *membership.Renewal) (*Attempt, error) {
	if err := a.advance(StateCompleted); err != nil {
		return nil, err
	}
	end := r.Subscription.PlanEndDate
	a.PlanEndDate = &end
	a.PaymentID = r.Payment.ID

	metrics.RecordRenewal(string(a.Method), outcomeCompleted)
	logger.Info("renewal completed",
		"member_id", a.MemberID, "payment_id", a.PaymentID, "plan_end_date", end)

	if o.Notifier != nil && member != nil {
		err := o.Notifier.SendRenewalReceipt(ctx, member.Email, member.Name, email.RenewalReceipt{
			PlanName:      planName,
			InvoiceNumber: r.Payment.InvoiceNumber,
			Method:        string(r.Payment.Method),
			Amount:        r.Payment.FinalAmount,
			Currency:      r.Payment.Currency,
			PlanEndDate:   end,
		})
		if err != nil {
			logger.Error("failed to queue renewal receipt", "member_id", a.MemberID, "error", err)
		}
	}
	return a, nil
}

// failed classifies a collaborator error as the attempt's PaymentFailure.
func (o *orchestrator) failed(a *Attempt, err error) error {
	var pf *PaymentFailure
	if !errors.As(err, &pf) {
		pf = &PaymentFailure{Reason: reasonFor(err), Err: err}
	}
	a.fail(pf.Reason)
	metrics.RecordRenewal(string(a.Method), outcomeFailed)
	logger.Error("renewal failed",
		"member_id", a.MemberID, "method", a.Method, "reason", pf.Reason, "error", err)
	return pf
}

func reasonFor(err error) string {
	var invalid *plan.InvalidPlanError
	switch {
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return "insufficient wallet balance"
	case errors.As(err, &invalid):
		return invalid.Error()
	default:
		return "the payment could not be recorded, please try again"
	}
}

func (o *orchestrator) planName(ctx context.Context, planID int) string {
	pl, err := o.Plans.Resolve(ctx, &planID)
	if err != nil || pl == nil {
		return "Membership"
	}
	return pl.Name
}

func (o *orchestrator) release(ctx context.Context, memberID int, owner string) {
	if err := o.Locker.Release(ctx, memberID, owner); err != nil {
		logger.Error("failed to release renewal lock", "member_id", memberID, "owner", owner, "error", err)
	}
}
