package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

type snapTransactions interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type transactionStatuses interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransGateway opens Snap payment pages and checks settlement through the
// Core API status endpoint. Midtrans charges whole currency units.
type MidtransGateway struct {
	snap   snapTransactions
	status transactionStatuses
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)
	var c coreapi.Client
	c.New(serverKey, env)

	return &MidtransGateway{snap: &s, status: &c}
}

func (g *MidtransGateway) Name() string { return "midtrans" }

func (g *MidtransGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	p := req.Payment
	gross := p.FinalAmount.Round(0).IntPart()

	sr := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  p.InvoiceNumber,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:       strconv.Itoa(p.PlanID),
			Name:     truncate(req.PlanName, 50),
			Price:    gross,
			Qty:      1,
			Category: "membership",
		}},
		CustomField1: strconv.Itoa(p.ID),
	}

	resp, merr := g.snap.CreateTransaction(sr)
	if merr != nil {
		return nil, fmt.Errorf("midtrans snap: %s", merr.Message)
	}
	if resp == nil || resp.RedirectURL == "" {
		return nil, ErrNoRedirect
	}
	return &Session{RedirectURL: resp.RedirectURL, Reference: resp.Token}, nil
}

func (g *MidtransGateway) Verify(ctx context.Context, p *Payment, cb Callback) (*Verification, error) {
	st, merr := g.status.CheckTransaction(p.InvoiceNumber)
	if merr != nil {
		return nil, fmt.Errorf("midtrans status %s: %s", p.InvoiceNumber, merr.Message)
	}

	switch strings.ToLower(st.TransactionStatus) {
	case "settlement":
	case "capture":
		if !strings.EqualFold(st.FraudStatus, "accept") {
			return &Verification{Pending: true, Reason: "payment held for fraud review"}, nil
		}
	case "pending":
		return &Verification{Pending: true, Reason: "payment not completed yet"}, nil
	default:
		return &Verification{Reason: "transaction " + st.TransactionStatus}, nil
	}

	paid, err := decimal.NewFromString(st.GrossAmount)
	if err != nil || !paid.Equal(p.FinalAmount.Round(0)) {
		return &Verification{Reason: fmt.Sprintf("paid amount %s does not match %s", st.GrossAmount, p.FinalAmount.Round(0))}, nil
	}
	return &Verification{Settled: true, TransactionID: st.TransactionID}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
