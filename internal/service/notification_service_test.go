package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-api/pkg/jobs"
	"github.com/noah-isme/lingua-api/pkg/mailer"
	"github.com/noah-isme/lingua-api/pkg/signing"
)

type mailerSpy struct {
	sent chan mailer.Message
	err  error
}

func (m *mailerSpy) Send(ctx context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent <- msg
	return nil
}

func TestNotifyPaymentSendsReceiptEmail(t *testing.T) {
	queue := jobs.NewQueue("notifications", jobs.QueueConfig{Workers: 1})
	spy := &mailerSpy{sent: make(chan mailer.Message, 1)}
	signer := signing.NewReceiptSigner("secret", time.Hour)
	svc := NewNotificationService(queue, spy, signer, NewMetricsService(), nil, NotificationConfig{ReceiptBaseURL: "https://api.linguaby.org/api/v1/"})
	queue.Start(context.Background())
	defer queue.Stop()

	err := svc.NotifyPayment(context.Background(), PaymentNotice{
		SessionID:   "cs_1",
		Email:       "ana@example.com",
		AmountTotal: 12000,
		Currency:    "eur",
		Credits:     5,
		Label:       "Italian A1 evening",
	})
	require.NoError(t, err)

	select {
	case msg := <-spy.sent:
		assert.Equal(t, "ana@example.com", msg.To)
		assert.Equal(t, "Payment received: 5 credits added", msg.Subject)
		assert.Contains(t, msg.Text, "Amount: EUR 120.00")
		assert.Contains(t, msg.Text, "Course: Italian A1 evening")
		assert.Contains(t, msg.HTML, "Lesson credits added: 5")

		idx := strings.Index(msg.Text, "https://api.linguaby.org/api/v1/receipts/")
		require.GreaterOrEqual(t, idx, 0)
		token := strings.TrimSpace(msg.Text[idx+len("https://api.linguaby.org/api/v1/receipts/"):])
		sessionID, err := signer.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "cs_1", sessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("receipt email was not sent")
	}
}

func TestNotifyPaymentSkipsWithoutEmail(t *testing.T) {
	queue := jobs.NewQueue("notifications", jobs.QueueConfig{})
	svc := NewNotificationService(queue, &mailerSpy{}, nil, nil, nil, NotificationConfig{})

	// queue not started: a skipped notice must not reach it
	require.NoError(t, svc.NotifyPayment(context.Background(), PaymentNotice{SessionID: "cs_1"}))
	require.Error(t, svc.NotifyPayment(context.Background(), PaymentNotice{SessionID: "cs_1", Email: "a@example.com"}))
}

func TestReceiptJobReturnsMailerError(t *testing.T) {
	spy := &mailerSpy{err: errors.New("sendgrid: status 503")}
	svc := NewNotificationService(nil, spy, nil, nil, nil, NotificationConfig{})

	err := svc.handleReceiptJob(context.Background(), jobs.Job{Type: JobTypePaymentReceipt, Payload: PaymentNotice{Email: "a@example.com"}})
	require.Error(t, err)

	msg := svc.buildMessage(PaymentNotice{Email: "a@example.com", AmountTotal: 500, Currency: "eur"})
	assert.Equal(t, "Payment received", msg.Subject)
	assert.NotContains(t, msg.Text, "receipts/")
}
