package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gymflow/internal/logger"
)

// Service is the payment-gateway collaborator used by renewals.
type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error)
	Get(ctx context.Context, id int) (*Payment, error)
	ListForMember(ctx context.Context, memberID, limit, offset int) ([]Payment, error)
	PendingForMember(ctx context.Context, memberID int) ([]Payment, error)
	Invoice(ctx context.Context, id int) (*Invoice, error)
	RenderInvoice(ctx context.Context, id int, planName string) (*Invoice, []byte, error)
	Verify(ctx context.Context, id int, cb Callback) (*Verification, error)
	Cancel(ctx context.Context, id int, reason string) error
}

type service struct {
	repo     Repository
	gateways *Router
	baseURL  string
	currency string
	now      func() time.Time
}

func NewService(repo Repository, gateways *Router, publicBaseURL, currency string) Service {
	return &service{
		repo:     repo,
		gateways: gateways,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		currency: currency,
		now:      time.Now,
	}
}

// Initiate records a PENDING payment and opens a hosted payment page for it.
// When the gateway cannot be reached or returns no redirect the payment is
// cancelled with the reason, so no PENDING row is left behind.
func (s *service) Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error) {
	ch, err := req.Method.Channel()
	if err != nil {
		return nil, err
	}
	if ch != ChannelGateway {
		return nil, fmt.Errorf("%s does not use a payment gateway", req.Method)
	}
	gw, err := s.gateways.For(req.Method)
	if err != nil {
		return nil, err
	}

	p := &Payment{
		MemberID:      req.MemberID,
		PlanID:        req.PlanID,
		DurationDays:  req.DurationDays,
		Amount:        req.Amount,
		Discount:      req.Discount,
		FinalAmount:   req.FinalAmount,
		Currency:      s.currency,
		Method:        req.Method,
		Status:        StatusPending,
		InvoiceNumber: NewInvoiceNumber(s.now()),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	session, err := gw.CreateSession(ctx, SessionRequest{
		Payment:   p,
		PlanName:  req.PlanName,
		Customer:  req.Customer,
		Callbacks: req.Callbacks.For(p.ID),
	})
	if err == nil && session.RedirectURL == "" {
		err = ErrNoRedirect
	}
	if err != nil {
		s.cancelQuietly(ctx, p, err.Error())
		logger.Error("payment gateway initiation failed",
			"payment_id", p.ID, "gateway", gw.Name(), "method", req.Method, "error", err)
		return nil, err
	}

	if session.Reference != "" {
		if err := s.repo.SetGatewayRef(ctx, p.ID, session.Reference); err != nil {
			// Without the reference the payment can never be reconciled.
			s.cancelQuietly(ctx, p, "could not record the gateway reference")
			logger.Error("failed to store gateway reference",
				"payment_id", p.ID, "gateway", gw.Name(), "reference", session.Reference, "error", err)
			return nil, err
		}
		ref := session.Reference
		p.GatewayRef = &ref
	}

	logger.Info("payment initiated", "payment_id", p.ID, "gateway", gw.Name(), "member_id", p.MemberID)
	return &Initiation{Payment: p, GatewayURL: session.RedirectURL}, nil
}

func (s *service) Get(ctx context.Context, id int) (*Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListForMember(ctx context.Context, memberID, limit, offset int) ([]Payment, error) {
	return s.repo.ListByMember(ctx, memberID, limit, offset)
}

func (s *service) PendingForMember(ctx context.Context, memberID int) ([]Payment, error) {
	return s.repo.ListPendingByMember(ctx, memberID)
}

func (s *service) Invoice(ctx context.Context, id int) (*Invoice, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.invoiceFor(p)
}

func (s *service) RenderInvoice(ctx context.Context, id int, planName string) (*Invoice, []byte, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	inv, err := s.invoiceFor(p)
	if err != nil {
		return nil, nil, err
	}
	return inv, RenderInvoice(p, planName), nil
}

func (s *service) invoiceFor(p *Payment) (*Invoice, error) {
	if p.Status != StatusPaid && p.Status != StatusRefunded {
		return nil, ErrInvoiceUnavailable
	}
	return &Invoice{
		PaymentID:     p.ID,
		InvoiceNumber: p.InvoiceNumber,
		FileName:      invoiceFileName(p),
		ContentType:   invoiceContentType,
		DownloadURL:   fmt.Sprintf("%s/payments/%d/invoice/download", s.baseURL, p.ID),
	}, nil
}

// Verify asks the payment's gateway whether it settled. It does not change
// the payment.
func (s *service) Verify(ctx context.Context, id int, cb Callback) (*Verification, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, ErrNotPending
	}
	gw, err := s.gateways.For(p.Method)
	if err != nil {
		return nil, err
	}
	return gw.Verify(ctx, p, cb)
}

func (s *service) Cancel(ctx context.Context, id int, reason string) error {
	if err := s.repo.MarkCancelled(ctx, id, reason); err != nil {
		return err
	}
	logger.Info("payment cancelled", "payment_id", id, "reason", reason)
	return nil
}

func (s *service) cancelQuietly(ctx context.Context, p *Payment, reason string) {
	if err := s.repo.MarkCancelled(ctx, p.ID, reason); err != nil {
		logger.Error("failed to cancel payment after gateway error", "payment_id", p.ID, "error", err)
		return
	}
	p.Status = StatusCancelled
	p.FailureReason = &reason
}
