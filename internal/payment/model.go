package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrNotPending         = errors.New("payment is no longer pending")
	ErrInvoiceUnavailable = errors.New("invoice is only available for settled payments")
)

type Payment struct {
	ID            int             `db:"id" json:"id"`
	MemberID      int             `db:"member_id" json:"member_id"`
	PlanID        int             `db:"plan_id" json:"plan_id"`
	DurationDays  int             `db:"duration_days" json:"duration_days"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	FinalAmount   decimal.Decimal `db:"final_amount" json:"final_amount"`
	Currency      string          `db:"currency" json:"currency"`
	Method        Method          `db:"payment_method" json:"payment_method"`
	Status        Status          `db:"status" json:"status"`
	TransactionID *string         `db:"transaction_id" json:"transaction_id,omitempty"`
	GatewayRef    *string         `db:"gateway_ref" json:"gateway_ref,omitempty"`
	FailureReason *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// Validate checks the amount and transaction id invariants.
func (p *Payment) Validate() error {
	if p.FinalAmount.IsNegative() {
		return fmt.Errorf("final amount %s is negative", p.FinalAmount)
	}
	if !p.Amount.Sub(p.Discount).Equal(p.FinalAmount) {
		return fmt.Errorf("final amount %s does not equal %s - %s", p.FinalAmount, p.Amount, p.Discount)
	}
	if p.TransactionID != nil && p.Status != StatusPaid && p.Status != StatusRefunded {
		return fmt.Errorf("transaction id set on %s payment", p.Status)
	}
	return nil
}

// MinorUnits converts the final amount to the smallest currency unit.
func (p *Payment) MinorUnits() int64 {
	return p.FinalAmount.Shift(2).Round(0).IntPart()
}

// NewInvoiceNumber returns a unique, human readable invoice number.
func NewInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), suffix)
}

// Customer is who the gateway bills.
type Customer struct {
	Name  string
	Email string
}

// Callbacks are the URLs a gateway sends the member back to. Each may contain
// the {payment_id} placeholder, which is replaced once the payment exists.
type Callbacks struct {
	SuccessURL string
	FailURL    string
	CancelURL  string
}

const paymentIDPlaceholder = "{payment_id}"

func (cb Callbacks) For(paymentID int) Callbacks {
	id := fmt.Sprint(paymentID)
	return Callbacks{
		SuccessURL: strings.ReplaceAll(cb.SuccessURL, paymentIDPlaceholder, id),
		FailURL:    strings.ReplaceAll(cb.FailURL, paymentIDPlaceholder, id),
		CancelURL:  strings.ReplaceAll(cb.CancelURL, paymentIDPlaceholder, id),
	}
}

// CallbacksFor builds the standard return URLs under baseURL.
func CallbacksFor(baseURL string) Callbacks {
	root := strings.TrimRight(baseURL, "/") + "/payments/callback/" + paymentIDPlaceholder
	return Callbacks{
		SuccessURL: root + "/" + OutcomeSuccess,
		FailURL:    root + "/" + OutcomeFail,
		CancelURL:  root + "/" + OutcomeCancel,
	}
}

type InitiateRequest struct {
	MemberID int
	PlanID   int
	PlanName string
	// DurationDays is the window length the payment buys once settled.
	DurationDays int
	Method       Method
	Amount       decimal.Decimal
	Discount     decimal.Decimal
	FinalAmount  decimal.Decimal
	Customer     Customer
	Callbacks    Callbacks
}

// Initiation is a created PENDING payment and where to send the member.
type Initiation struct {
	Payment    *Payment `json:"payment"`
	GatewayURL string   `json:"gateway_url"`
}

// Gateway return outcomes, as they appear in callback URLs.
const (
	OutcomeSuccess = "success"
	OutcomeFail    = "fail"
	OutcomeCancel  = "cancel"
)

// Callback carries whatever the gateway sent back with the member.
type Callback struct {
	Outcome string            `json:"outcome"`
	Params  map[string]string `json:"params,omitempty"`
}

func (cb Callback) Param(key string) string {
	if cb.Params == nil {
		return ""
	}
	return cb.Params[key]
}

// Verification is the gateway's answer to "did this payment settle?". A
// payment that is neither settled nor pending has failed.
type Verification struct {
	Settled       bool
	Pending       bool
	TransactionID string
	Reason        string
}

// Invoice describes a downloadable invoice document.
type Invoice struct {
	PaymentID     int    `json:"payment_id"`
	InvoiceNumber string `json:"invoice_number"`
	FileName      string `json:"file_name"`
	ContentType   string `json:"content_type"`
	DownloadURL   string `json:"download_url"`
}
