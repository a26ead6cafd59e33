package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/pkg/export"
	"github.com/noah-isme/lingua-api/pkg/jobs"
	"github.com/noah-isme/lingua-api/pkg/mailer"
)

// JobTypePaymentReceipt is the queue job that emails a payment confirmation.
const JobTypePaymentReceipt = "payment_receipt"

// Notification outcomes recorded on notifications_total.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// PaymentNotice describes a settled payment worth telling the learner about.
type PaymentNotice struct {
	SessionID   string
	Email       string
	AmountTotal int64
	Currency    string
	Credits     int
	Label       string
}

type receiptLinker interface {
	Generate(sessionID string) (string, time.Time, error)
}

type jobEnqueuer interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

// NotificationConfig shapes confirmation emails.
type NotificationConfig struct {
	BusinessName   string
	ReceiptBaseURL string
}

// NotificationService queues and sends payment confirmation emails.
type NotificationService struct {
	queue   jobEnqueuer
	mailer  mailer.Mailer
	links   receiptLinker
	metrics *MetricsService
	logger  *zap.Logger
	cfg     NotificationConfig
}

// NewNotificationService registers the receipt job handler on queue.
func NewNotificationService(queue jobEnqueuer, m mailer.Mailer, links receiptLinker, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "Lingua By"
	}
	cfg.ReceiptBaseURL = strings.TrimRight(cfg.ReceiptBaseURL, "/")
	svc := &NotificationService{queue: queue, mailer: m, links: links, metrics: metrics, logger: logger, cfg: cfg}
	if queue != nil {
		queue.Register(JobTypePaymentReceipt, svc.handleReceiptJob)
	}
	return svc
}

// NotifyPayment schedules the confirmation email.
func (s *NotificationService) NotifyPayment(ctx context.Context, notice PaymentNotice) error {
	if s.queue == nil || notice.Email == "" {
		s.metrics.RecordNotification(NotificationSkipped)
		return nil
	}
	if err := s.queue.Enqueue(jobs.Job{Type: JobTypePaymentReceipt, Payload: notice}); err != nil {
		s.metrics.RecordNotification(NotificationFailed)
		return fmt.Errorf("enqueue payment receipt: %w", err)
	}
	return nil
}

func (s *NotificationService) handleReceiptJob(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(PaymentNotice)
	if !ok {
		s.logger.Error("unexpected receipt job payload", zap.String("job_id", job.ID))
		return nil
	}
	msg := s.buildMessage(notice)
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification(NotificationFailed)
		return err
	}
	s.metrics.RecordNotification(NotificationSent)
	s.logger.Info("payment receipt sent", zap.String("session_id", notice.SessionID), zap.Int("attempt", job.Attempt))
	return nil
}

func (s *NotificationService) buildMessage(n PaymentNotice) mailer.Message {
	subject := "Payment received"
	if n.Credits > 0 {
		subject = fmt.Sprintf("Payment received: %d credits added", n.Credits)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Thank you for your payment to %s.\n\n", s.cfg.BusinessName)
	if n.Label != "" {
		fmt.Fprintf(&text, "Course: %s\n", n.Label)
	}
	fmt.Fprintf(&text, "Amount: %s\n", export.FormatAmount(n.AmountTotal, n.Currency))
	if n.Credits > 0 {
		fmt.Fprintf(&text, "Lesson credits added: %d\n", n.Credits)
	}
	link := s.receiptLink(n.SessionID)
	if link != "" {
		fmt.Fprintf(&text, "\nDownload your receipt: %s\n", link)
	}

	var body strings.Builder
	body.WriteString("<p>Thank you for your payment to " + html.EscapeString(s.cfg.BusinessName) + ".</p><ul>")
	if n.Label != "" {
		body.WriteString("<li>Course: " + html.EscapeString(n.Label) + "</li>")
	}
	body.WriteString("<li>Amount: " + html.EscapeString(export.FormatAmount(n.AmountTotal, n.Currency)) + "</li>")
	if n.Credits > 0 {
		fmt.Fprintf(&body, "<li>Lesson credits added: %d</li>", n.Credits)
	}
	body.WriteString("</ul>")
	if link != "" {
		body.WriteString(`<p><a href="` + html.EscapeString(link) + `">Download your receipt</a></p>`)
	}

	return mailer.Message{To: n.Email, Subject: subject, Text: text.String(), HTML: body.String()}
}

func (s *NotificationService) receiptLink(sessionID string) string {
	if s.links == nil || s.cfg.ReceiptBaseURL == "" {
		return ""
	}
	token, _, err := s.links.Generate(sessionID)
	if err != nil {
		s.logger.Warn("could not sign receipt link", zap.String("session_id", sessionID), zap.Error(err))
		return ""
	}
	return s.cfg.ReceiptBaseURL + "/receipts/" + token
}
