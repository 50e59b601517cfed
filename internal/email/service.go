package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"gymflow/internal/logger"
	"gymflow/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3

	TypeRenewalReceipt = "renewal_receipt"
	TypePlanNotice     = "plan_notice"
	TypeGeneric        = "generic"
)

type EmailJob struct {
	Type    string    `json:"type"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Config struct {
	From     string
	FromName string
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

// RenewalReceipt is what a member is told after a renewal settles.
type RenewalReceipt struct {
	PlanName      string
	InvoiceNumber string
	Method        string
	Amount        decimal.Decimal
	Currency      string
	PlanEndDate   time.Time
}

type Service struct {
	redis      *redis.Client
	cfg        Config
	deliver    func(EmailJob) error
	retryDelay time.Duration
}

func New(rdb *redis.Client, cfg Config) *Service {
	s := &Service{redis: rdb, cfg: cfg, retryDelay: 5 * time.Second}
	s.deliver = s.sendSMTP
	return s
}

func (s *Service) Send(ctx context.Context, to, name, subject, body string) error {
	return s.enqueue(ctx, TypeGeneric, to, name, subject, body)
}

func (s *Service) enqueue(ctx context.Context, emailType, to, name, subject, body string) error {
	job := EmailJob{
		Type:    emailType,
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Error("failed to queue email", "to", to, "type", emailType, "error", err)
		metrics.RecordEmail(emailType, "queue_failed")
		return err
	}

	logger.Info("email queued", "to", to, "type", emailType)
	return nil
}

// Start drains the queue until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("dropping malformed email job", "error", err)
		return
	}

	job.Tries++
	if err := s.deliver(job); err != nil {
		logger.Error("email delivery failed", "to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			time.Sleep(s.retryDelay)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, string(data))
		} else {
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordEmail(job.Type, "sent")
	logger.Info("email sent", "to", job.To, "type", job.Type)
}

func (s *Service) sendSMTP(job EmailJob) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.cfg.FromName, s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", job.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", job.Subject)
	msg.WriteString("\r\n" + job.Body)

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" && s.cfg.SMTPPass != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}

	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	return smtp.SendMail(addr, auth, s.cfg.From, []string{job.To}, []byte(msg.String()))
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, string(data))
	metrics.RecordEmail(job.Type, "failed")
	logger.Error("email moved to failed queue", "to", job.To, "tries", job.Tries)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

func (s *Service) SendRenewalReceipt(ctx context.Context, email, name string, r RenewalReceipt) error {
	subject := "Membership renewed - " + r.PlanName
	body := fmt.Sprintf(`Hi %s,

Your membership has been renewed.

Plan: %s
Invoice: %s
Paid: %s %s (%s)
Valid until: %s

See you at the gym!

- GymFlow Team`, name, r.PlanName, r.InvoiceNumber, r.Amount.StringFixed(2), r.Currency,
		r.Method, r.PlanEndDate.Format("Jan 2, 2006"))

	return s.enqueue(ctx, TypeRenewalReceipt, email, name, subject, body)
}

func (s *Service) SendPlanNotice(ctx context.Context, email, name, planName, notice string) error {
	subject := "Update about your plan - " + planName
	body := fmt.Sprintf(`Hi %s,

%s

Your current membership stays valid until its end date. You can pick
another plan from the catalogue when you renew.

- GymFlow Team`, name, notice)

	return s.enqueue(ctx, TypePlanNotice, email, name, subject, body)
}
