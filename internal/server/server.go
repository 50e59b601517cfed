package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"gymflow/internal/auth"
	"gymflow/internal/config"
	"gymflow/internal/email"
	"gymflow/internal/membership"
	"gymflow/internal/payment"
	"gymflow/internal/plan"
	"gymflow/internal/renewal"
	"gymflow/internal/user"
	"gymflow/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	email  *email.Service
}

func New(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, emailService *email.Service) (*Server, error) {
	gateways, stripe, err := newGatewayRouter(cfg)
	if err != nil {
		return nil, err
	}

	userRepo := user.NewRepository(db)
	planRepo := plan.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	walletRepo := wallet.NewRepository(db)

	userService := user.NewService(userRepo, cfg.JWTSecret)
	planService := plan.NewService(planRepo, emailService)
	paymentService := payment.NewService(paymentRepo, gateways, cfg.PublicBaseURL, cfg.Currency)
	membershipService := membership.NewService(
		membership.NewRepository(db, paymentRepo), planService, walletRepo, cfg.Currency)

	orchestrator := renewal.NewOrchestrator(renewal.Deps{
		Members:       userService,
		Plans:         planService,
		Memberships:   membershipService,
		Payments:      paymentService,
		Locker:        renewal.NewRedisLocker(rdb, cfg.RenewalLockTTL),
		Notifier:      emailService,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	var webhooks renewal.WebhookParser
	if stripe != nil {
		webhooks = stripe
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(), MetricsMiddleware(), corsMiddleware())
	registerRoutes(router, cfg, routes{
		user:       user.NewHandler(userService),
		plan:       plan.NewHandler(planService),
		membership: membership.NewHandler(membershipService),
		payment:    payment.NewHandler(paymentService, planService),
		renewal:    renewal.NewHandler(orchestrator, webhooks),
		wallet:     wallet.NewHandler(walletRepo),
		email:      emailService,
		ready: map[string]Pinger{
			"postgres": db,
			"redis":    PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
	})

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		db:     db,
		config: cfg,
		email:  emailService,
	}, nil
}

type routes struct {
	user       *user.Handler
	plan       *plan.Handler
	membership *membership.Handler
	payment    *payment.Handler
	renewal    *renewal.Handler
	wallet     *wallet.Handler
	email      *email.Service
	ready      map[string]Pinger
}

func registerRoutes(router *gin.Engine, cfg *config.Config, h routes) {
	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	if h.ready != nil {
		router.GET("/ready", Ready(h.ready))
	}
	SetupSwagger(router, hostOf(cfg.PublicBaseURL))

	limited := RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)

	public := router.Group("/auth")
	public.Use(limited)
	{
		public.POST("/register", h.user.Register)
		public.POST("/login", h.user.Login)
		public.POST("/refresh", h.user.RefreshToken)
	}

	router.GET("/plans", h.plan.ListActive)

	// Gateways call back without a bearer token; returns are verified with the provider.
	callbacks := router.Group("/")
	callbacks.Use(limited)
	{
		callbacks.GET("/payments/callback/:paymentID/:outcome", h.renewal.Callback)
		callbacks.POST("/payments/callback/:paymentID/:outcome", h.renewal.Callback)
		callbacks.POST("/webhooks/stripe", h.renewal.StripeWebhook)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", h.user.GetMe)
		protected.GET("/me/membership", h.membership.GetMine)
		protected.GET("/me/payments", h.payment.ListMine)
		protected.POST("/me/renewals", limited, h.renewal.Renew)

		protected.GET("/payments/:paymentID", h.payment.Get)
		protected.GET("/payments/:paymentID/invoice", h.payment.Invoice)
		protected.GET("/payments/:paymentID/invoice/download", h.payment.DownloadInvoice)

		protected.GET("/wallet", h.wallet.GetBalance)
		protected.GET("/wallet/transactions", h.wallet.ListTransactions)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.AdminRoles...))
	{
		admin.GET("/plans", h.plan.ListAll)
		admin.POST("/plans", h.plan.Create)
		admin.GET("/plans/:planID", h.plan.Get)
		admin.PUT("/plans/:planID", h.plan.Update)
		admin.POST("/plans/:planID/activate", h.plan.Activate)
		admin.POST("/plans/:planID/deactivate", h.plan.Deactivate)
		admin.DELETE("/plans/:planID", h.plan.Delete)
		admin.GET("/plans/:planID/statistics", h.plan.Statistics)
		admin.POST("/members/:userID/wallet/topup", h.wallet.TopUp)

		if h.email != nil {
			admin.GET("/test-email", TestEmail(h.email))
		}
	}
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, Stripe-Signature")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
