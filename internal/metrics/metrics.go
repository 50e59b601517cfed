package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gymflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RenewalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymflow_renewals_total",
			Help: "Renewal attempts by payment method and outcome",
		},
		[]string{"payment_method", "outcome"},
	)

	PlanLifecycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymflow_plan_lifecycle_total",
			Help: "Administrative plan mutations",
		},
		[]string{"action"},
	)

	PlanActiveMembers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gymflow_plan_active_members",
			Help: "Active members per plan at the last statistics recompute",
		},
		[]string{"plan_id"},
	)

	PlanMonthlyRevenue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gymflow_plan_monthly_revenue",
			Help: "Projected monthly revenue per plan at the last statistics recompute",
		},
		[]string{"plan_id"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymflow_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gymflow_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	WalletTopUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymflow_wallet_topups_total",
			Help: "Total number of wallet top-ups",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordRenewal counts a renewal outcome: "completed", "redirected",
// "failed" or "rejected".
func RecordRenewal(paymentMethod, outcome string) {
	RenewalsTotal.WithLabelValues(paymentMethod, outcome).Inc()
}

func RecordPlanLifecycle(action string) {
	PlanLifecycleTotal.WithLabelValues(action).Inc()
}

func SetPlanStatistics(planID string, members int, revenue float64) {
	PlanActiveMembers.WithLabelValues(planID).Set(float64(members))
	PlanMonthlyRevenue.WithLabelValues(planID).Set(revenue)
}

// ForgetPlan drops a deleted plan's statistics series.
func ForgetPlan(planID string) {
	PlanActiveMembers.DeleteLabelValues(planID)
	PlanMonthlyRevenue.DeleteLabelValues(planID)
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func RecordWalletTopUp() {
	WalletTopUpsTotal.Inc()
}
