package server

import (
	"net/http"
	"time"

	"gymflow/internal/config"
	"gymflow/internal/logger"
	"gymflow/internal/payment"
)

// newGatewayRouter registers every provider that has credentials configured.
// Methods without a provider fail at initiation with payment.ErrNoGateway.
func newGatewayRouter(cfg *config.Config) (*payment.Router, *payment.StripeGateway, error) {
	router := payment.NewRouter()

	if cfg.SSLCommerzStoreID != "" {
		baseURL := payment.SSLCommerzLiveURL
		if cfg.SSLCommerzSandbox {
			baseURL = payment.SSLCommerzSandboxURL
		}
		gw := payment.NewSSLCommerzGateway(cfg.SSLCommerzStoreID, cfg.SSLCommerzStorePassword,
			baseURL, cfg.Currency, &http.Client{Timeout: 30 * time.Second})
		if err := router.Register(gw, payment.MethodSSLCommerz, payment.MethodBkash, payment.MethodNagad); err != nil {
			return nil, nil, err
		}
	}

	var stripe *payment.StripeGateway
	if cfg.StripeSecretKey != "" {
		stripe = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Currency)
		if err := router.Register(stripe, payment.MethodStripe); err != nil {
			return nil, nil, err
		}
	}

	if cfg.MidtransServerKey != "" {
		if err := router.Register(payment.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransProduction), payment.MethodMidtrans); err != nil {
			return nil, nil, err
		}
	}

	logger.Info("payment gateways configured", "methods", router.Methods())
	return router, stripe, nil
}
