package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymflow/internal/logger"
	"gymflow/internal/payment"
	"gymflow/internal/plan"
	"gymflow/internal/wallet"
)

// PlanResolver resolves a possibly dangling plan reference.
type PlanResolver interface {
	Resolve(ctx context.Context, id *int) (*plan.MembershipPlan, error)
}

// Wallet is the prepaid balance WALLET renewals are charged against.
type Wallet interface {
	AddTransaction(ctx context.Context, userID int, amountCents int64, txType string) error
}

type Service interface {
	Get(ctx context.Context, memberID int) (*Subscription, error)
	// Renew settles a direct-method renewal synchronously.
	Renew(ctx context.Context, req RenewRequest, now time.Time) (*Renewal, error)
	SettleGatewayPayment(ctx context.Context, paymentID int, transactionID string, now time.Time) (*Renewal, error)
	Overview(ctx context.Context, memberID int, now time.Time) (*Overview, error)
}

type service struct {
	repo     Repository
	plans    PlanResolver
	wallet   Wallet
	currency string
}

func NewService(repo Repository, plans PlanResolver, w Wallet, currency string) Service {
	return &service{repo: repo, plans: plans, wallet: w, currency: currency}
}

func (s *service) Get(ctx context.Context, memberID int) (*Subscription, error) {
	return s.repo.Get(ctx, memberID)
}

func (s *service) Renew(ctx context.Context, req RenewRequest, now time.Time) (*Renewal, error) {
	ch, err := req.Method.Channel()
	if err != nil {
		return nil, err
	}
	if ch != payment.ChannelDirect {
		return nil, ErrNotDirectMethod
	}

	quote, err := plan.QuoteFor(req.Plan)
	if err != nil {
		return nil, err
	}

	paidAt := now
	p := &payment.Payment{
		MemberID:      req.MemberID,
		PlanID:        req.Plan.ID,
		DurationDays:  req.Plan.DurationDays,
		Amount:        quote.BasePrice,
		Discount:      quote.Discount,
		FinalAmount:   quote.FinalPrice,
		Currency:      s.currency,
		Method:        req.Method,
		Status:        payment.StatusPaid,
		InvoiceNumber: payment.NewInvoiceNumber(now),
		PaidAt:        &paidAt,
	}
	sub := newWindow(req.MemberID, req.Plan.ID, req.Plan.DurationDays, now)

	if req.Method == payment.MethodWallet {
		if err := s.debit(ctx, p); err != nil {
			return nil, err
		}
	}

	if err := s.repo.RenewWithPayment(ctx, p, sub); err != nil {
		if req.Method == payment.MethodWallet {
			s.refund(ctx, p)
		}
		return nil, err
	}

	logger.Info("membership renewed",
		"member_id", req.MemberID, "plan_id", req.Plan.ID, "method", req.Method,
		"payment_id", p.ID, "plan_end_date", sub.PlanEndDate)
	return &Renewal{Subscription: sub, Payment: *p}, nil
}

func (s *service) debit(ctx context.Context, p *payment.Payment) error {
	if s.wallet == nil {
		return fmt.Errorf("wallet payments are not available")
	}
	amount := p.MinorUnits()
	if amount == 0 {
		return nil
	}
	if err := s.wallet.AddTransaction(ctx, p.MemberID, -amount, wallet.TxMembershipPayment); err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			return err
		}
		return fmt.Errorf("wallet debit: %w", err)
	}
	return nil
}

func (s *service) refund(ctx context.Context, p *payment.Payment) {
	amount := p.MinorUnits()
	if amount == 0 {
		return
	}
	if err := s.wallet.AddTransaction(ctx, p.MemberID, amount, wallet.TxRefund); err != nil {
		logger.Error("wallet refund after failed renewal did not go through",
			"member_id", p.MemberID, "amount_cents", amount, "error", err)
	}
}

func (s *service) SettleGatewayPayment(ctx context.Context, paymentID int, transactionID string, now time.Time) (*Renewal, error) {
	r, err := s.repo.SettleGatewayPayment(ctx, paymentID, transactionID, now)
	if err != nil {
		return nil, err
	}
	logger.Info("gateway payment settled",
		"payment_id", paymentID, "member_id", r.Payment.MemberID, "plan_end_date", r.Subscription.PlanEndDate)
	return r, nil
}

func (s *service) Overview(ctx context.Context, memberID int, now time.Time) (*Overview, error) {
	out := &Overview{MemberID: memberID}

	sub, err := s.repo.Get(ctx, memberID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Subscription = sub

	w := sub.WindowFor(now)
	out.Window = &w

	p, err := s.plans.Resolve(ctx, sub.CurrentPlanID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return out, nil
	}
	out.Plan = p
	if q, err := plan.QuoteFor(*p); err == nil {
		out.Pricing = &q
	}
	return out, nil
}
