package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SSLCommerzSandboxURL = "https://sandbox.sslcommerz.com"
	SSLCommerzLiveURL    = "https://securepay.sslcommerz.com"
)

// SSLCommerzGateway opens SSLCommerz hosted checkout sessions. bKash and Nagad
// are SSLCommerz channels selected with multi_card_name.
type SSLCommerzGateway struct {
	storeID       string
	storePassword string
	baseURL       string
	currency      string
	client        *http.Client
}

func NewSSLCommerzGateway(storeID, storePassword, baseURL, currency string, client *http.Client) *SSLCommerzGateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SSLCommerzGateway{
		storeID:       storeID,
		storePassword: storePassword,
		baseURL:       strings.TrimRight(baseURL, "/"),
		currency:      currency,
		client:        client,
	}
}

func (g *SSLCommerzGateway) Name() string { return "sslcommerz" }

type sslSessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

type sslValidationResponse struct {
	Status      string `json:"status"`
	TranID      string `json:"tran_id"`
	ValID       string `json:"val_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	BankTranID  string `json:"bank_tran_id"`
	CardType    string `json:"card_type"`
	RiskLevel   string `json:"risk_level"`
	ErrorReason string `json:"error"`
}

func multiCardName(m Method) string {
	switch m {
	case MethodBkash:
		return "bkash"
	case MethodNagad:
		return "nagad"
	}
	return ""
}

func (g *SSLCommerzGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	p := req.Payment
	form := url.Values{}
	form.Set("store_id", g.storeID)
	form.Set("store_passwd", g.storePassword)
	form.Set("total_amount", p.FinalAmount.StringFixed(2))
	form.Set("currency", g.currency)
	form.Set("tran_id", p.InvoiceNumber)
	form.Set("success_url", req.Callbacks.SuccessURL)
	form.Set("fail_url", req.Callbacks.FailURL)
	form.Set("cancel_url", req.Callbacks.CancelURL)
	form.Set("cus_name", req.Customer.Name)
	form.Set("cus_email", req.Customer.Email)
	form.Set("product_name", req.PlanName)
	form.Set("product_category", "membership")
	form.Set("product_profile", "non-physical-goods")
	form.Set("shipping_method", "NO")
	form.Set("num_of_item", "1")
	form.Set("value_a", strconv.Itoa(p.ID))
	if name := multiCardName(p.Method); name != "" {
		form.Set("multi_card_name", name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/gwprocess/v4/api.php", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out sslSessionResponse
	if err := g.do(httpReq, &out); err != nil {
		return nil, err
	}
	if !strings.EqualFold(out.Status, "SUCCESS") {
		return nil, fmt.Errorf("sslcommerz session rejected: %s", out.FailedReason)
	}
	if out.GatewayPageURL == "" {
		return nil, ErrNoRedirect
	}
	return &Session{RedirectURL: out.GatewayPageURL, Reference: p.InvoiceNumber}, nil
}

type sslTransactionQueryResponse struct {
	APIConnect  string                  `json:"APIConnect"`
	NoOfTrans   int                     `json:"no_of_trans_found"`
	Elements    []sslValidationResponse `json:"element"`
	ErrorReason string                  `json:"error"`
}

// Verify asks the validation API about the val_id posted back on success.
// Returns without a val_id (cancel, fail, or a late check) are looked up by
// tran_id instead.
func (g *SSLCommerzGateway) Verify(ctx context.Context, p *Payment, cb Callback) (*Verification, error) {
	valID := cb.Param("val_id")
	if valID == "" {
		return g.verifyByTranID(ctx, p)
	}

	q := g.credentials()
	q.Set("val_id", valID)

	var out sslValidationResponse
	if err := g.get(ctx, "/validator/api/validationserverAPI.php", q, &out); err != nil {
		return nil, err
	}
	return verdict(p, out), nil
}

func (g *SSLCommerzGateway) verifyByTranID(ctx context.Context, p *Payment) (*Verification, error) {
	q := g.credentials()
	q.Set("tran_id", p.InvoiceNumber)

	var out sslTransactionQueryResponse
	if err := g.get(ctx, "/validator/api/merchantTransIDvalidationAPI.php", q, &out); err != nil {
		return nil, err
	}
	if !strings.EqualFold(out.APIConnect, "DONE") {
		return nil, fmt.Errorf("sslcommerz transaction query: %s %s", out.APIConnect, out.ErrorReason)
	}
	if len(out.Elements) == 0 {
		return &Verification{Reason: "no transaction found at the gateway"}, nil
	}

	pending := false
	for _, tx := range out.Elements {
		switch strings.ToUpper(tx.Status) {
		case "VALID", "VALIDATED":
			return verdict(p, tx), nil
		case "PENDING":
			pending = true
		}
	}
	if pending {
		return &Verification{Pending: true}, nil
	}
	return verdict(p, out.Elements[0]), nil
}

// verdict checks a validated transaction against the payment it should settle.
func verdict(p *Payment, out sslValidationResponse) *Verification {
	switch strings.ToUpper(out.Status) {
	case "VALID", "VALIDATED":
	default:
		reason := out.ErrorReason
		if reason == "" {
			reason = "transaction status " + out.Status
		}
		return &Verification{Reason: reason}
	}

	if out.TranID != p.InvoiceNumber {
		return &Verification{Reason: "transaction does not belong to this payment"}
	}
	paid, err := decimal.NewFromString(out.Amount)
	if err != nil || !paid.Equal(p.FinalAmount) {
		return &Verification{Reason: fmt.Sprintf("paid amount %s does not match %s", out.Amount, p.FinalAmount.StringFixed(2))}
	}

	txID := out.BankTranID
	if txID == "" {
		txID = out.ValID
	}
	return &Verification{Settled: true, TransactionID: txID}
}

func (g *SSLCommerzGateway) credentials() url.Values {
	q := url.Values{}
	q.Set("store_id", g.storeID)
	q.Set("store_passwd", g.storePassword)
	q.Set("format", "json")
	return q
}

func (g *SSLCommerzGateway) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return g.do(httpReq, out)
}

func (g *SSLCommerzGateway) do(req *http.Request, out interface{}) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sslcommerz request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("sslcommerz response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sslcommerz returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("sslcommerz response: %w", err)
	}
	return nil
}
