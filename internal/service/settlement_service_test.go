package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/internal/models"
	"github.com/noah-isme/lingua-api/internal/repository"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/events"
	"github.com/noah-isme/lingua-api/pkg/payments"
)

type parserStub struct {
	event *payments.Event
	err   error
}

func (p *parserStub) ParseEvent(payload []byte, signature string) (*payments.Event, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.event, nil
}

type publisherSpy struct {
	mu          sync.Mutex
	keys        []string
	failOn      string
	noDeadlines int
}

func (p *publisherSpy) Publish(ctx context.Context, routingKey string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		p.noDeadlines++
	}
	if routingKey == p.failOn {
		return errors.New("broker down")
	}
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *publisherSpy) Close() error { return nil }

type notifierSpy struct {
	notices []PaymentNotice
	err     error
}

func (n *notifierSpy) NotifyPayment(ctx context.Context, notice PaymentNotice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

type settlementFixture struct {
	svc       *SettlementService
	store     *ledgerStore
	parser    *parserStub
	publisher *publisherSpy
	notifier  *notifierSpy
	catalog   *catalogSpy
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		store:     newLedgerStore(),
		parser:    &parserStub{},
		publisher: &publisherSpy{},
		notifier:  &notifierSpy{},
		catalog:   &catalogSpy{},
	}
	f.svc = NewSettlementService(SettlementDeps{
		Parser:       f.parser,
		Purchases:    f.store,
		Credits:      f.store,
		Enrollments:  f.store,
		Holds:        f.store,
		Notifier:     f.notifier,
		Publisher:    f.publisher,
		Catalog:      f.catalog,
		Metrics:      NewMetricsService(),
		PriceCredits: map[string]int{"price_pack": 5, "price_cohort": 0},
	})
	return f
}

func completedEvent(sessionID string, meta map[string]string) *payments.Event {
	return &payments.Event{
		ID:   "evt_" + sessionID,
		Type: payments.EventCheckoutCompleted,
		Session: &payments.CheckoutSession{
			ID:          sessionID,
			Email:       "Ana@Example.com",
			AmountTotal: 12000,
			Metadata:    meta,
		},
	}
}

func TestSettlementCompletedCohortCheckout(t *testing.T) {
	f := newSettlementFixture()
	f.store.addCohort(cohortItalian, 10, models.CohortStatusOpen, "price_cohort")
	linked := f.store.addHold(cohortItalian, fixedNow.Add(10*time.Minute), "cs_1")
	other := f.store.addHold(cohortItalian, fixedNow.Add(10*time.Minute), "cs_other")

	f.parser.event = completedEvent("cs_1", map[string]string{
		"priceId":    "price_cohort",
		"lang":       "Italian",
		"cohort_id":  cohortItalian,
		"level":      "A1",
		"start_date": "2026-05-04",
		"label":      "Italian A1 evening",
		"hold_id":    linked.ID,
	})

	require.NoError(t, f.svc.HandleNotification(context.Background(), []byte("{}"), "sig"))

	purchase, ok := f.store.purchases["cs_1"]
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", purchase.Email)
	assert.Equal(t, "eur", purchase.Currency)
	assert.Equal(t, int64(12000), purchase.AmountTotal)
	assert.Equal(t, models.PurchaseStatusCompleted, purchase.Status)
	assert.Equal(t, "Italian", purchase.Lang)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(purchase.Metadata, &meta))
	assert.Equal(t, map[string]string{"level": "A1", "cohort_id": cohortItalian, "start_date": "2026-05-04", "label": "Italian A1 evening"}, meta)

	require.Len(t, f.store.enrollments, 1)
	assert.Equal(t, models.EnrollmentStatusConfirmed, f.store.enrollments[0].Status)
	assert.Equal(t, models.EnrollmentSourceStripe, f.store.enrollments[0].Source)
	assert.Empty(t, f.store.credits, "cohort price grants no credits")

	assert.NotContains(t, f.store.holds, linked.ID)
	assert.Contains(t, f.store.holds, other.ID)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "Italian A1 evening", f.notifier.notices[0].Label)
	assert.Equal(t, []string{events.EnrollmentConfirmed}, f.publisher.keys)
	assert.Zero(t, f.publisher.noDeadlines, "broker calls are time-boxed")
	assert.Equal(t, 1, f.catalog.calls)
}

func TestSettlementReplayIsIdempotent(t *testing.T) {
	f := newSettlementFixture()
	f.parser.event = completedEvent("cs_pack", map[string]string{"priceId": "price_pack", "lang": "German", "cohort_id": cohortSpare})

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.HandleNotification(context.Background(), []byte("{}"), "sig"))
	}

	assert.Len(t, f.store.purchases, 1)
	assert.Len(t, f.store.enrollments, 1)
	require.Len(t, f.store.credits, 1)
	assert.Equal(t, 5, f.store.credits[0].DeltaCredits)
	assert.Equal(t, "purchase:cs_pack", f.store.credits[0].Source)
	assert.Len(t, f.notifier.notices, 1)
	assert.Equal(t, []string{events.EnrollmentConfirmed, events.CreditsGranted}, f.publisher.keys)
}

func TestSettlementAsyncSucceededWithoutEmail(t *testing.T) {
	f := newSettlementFixture()
	event := completedEvent("cs_anon", map[string]string{"priceId": "price_pack", "cohort_id": cohortItalian})
	event.Type = payments.EventCheckoutAsyncSucceeded
	event.Session.Email = ""
	event.Session.Currency = "EUR"
	f.parser.event = event

	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))

	require.Contains(t, f.store.purchases, "cs_anon")
	assert.Equal(t, "eur", f.store.purchases["cs_anon"].Currency)
	assert.Empty(t, f.store.credits)
	assert.Empty(t, f.store.enrollments)
	assert.Empty(t, f.notifier.notices)
}

func TestSettlementExpiredReleasesHoldOnly(t *testing.T) {
	for _, eventType := range []string{payments.EventCheckoutExpired, payments.EventCheckoutAsyncPaymentFailed} {
		t.Run(eventType, func(t *testing.T) {
			f := newSettlementFixture()
			unlinked := f.store.addHold(cohortItalian, fixedNow.Add(10*time.Minute), "")
			f.parser.event = &payments.Event{
				ID:   "evt_1",
				Type: eventType,
				Session: &payments.CheckoutSession{
					ID:       "cs_gone",
					Email:    "ana@example.com",
					Metadata: map[string]string{"cohort_id": cohortItalian, "hold_id": unlinked.ID},
				},
			}

			require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))

			assert.Empty(t, f.store.holds)
			assert.Empty(t, f.store.purchases)
			assert.Empty(t, f.store.enrollments)
			assert.Equal(t, []string{events.HoldReleased}, f.publisher.keys)
			assert.Equal(t, 1, f.catalog.calls)
		})
	}
}

func TestSettlementIgnoresOtherEvents(t *testing.T) {
	f := newSettlementFixture()
	f.parser.event = &payments.Event{ID: "evt_2", Type: "invoice.paid"}

	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))
	assert.Empty(t, f.store.purchases)
	assert.Empty(t, f.publisher.keys)
}

func TestSettlementRejectsBadSignature(t *testing.T) {
	f := newSettlementFixture()
	f.parser.err = fmt.Errorf("%w: no valid signature", payments.ErrInvalidSignature)

	err := f.svc.HandleNotification(context.Background(), nil, "bogus")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidSignature.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
	assert.Empty(t, f.store.purchases)
}

func TestSettlementStorageFailureAsksForRedelivery(t *testing.T) {
	f := newSettlementFixture()
	f.store.enrollmentErr = errors.New("connection refused")
	f.parser.event = completedEvent("cs_3", map[string]string{"priceId": "price_pack", "cohort_id": cohortItalian})

	err := f.svc.HandleNotification(context.Background(), nil, "sig")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Equal(t, 500, appErrors.FromError(err).Status)
	assert.Empty(t, f.notifier.notices)

	// retry after recovery converges without duplicates
	f.store.enrollmentErr = nil
	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))
	assert.Len(t, f.store.purchases, 1)
	assert.Len(t, f.store.credits, 1)
	assert.Len(t, f.store.enrollments, 1)
	assert.Len(t, f.notifier.notices, 1)
}

func TestSettlementSideEffectFailuresAreSwallowed(t *testing.T) {
	f := newSettlementFixture()
	f.notifier.err = errors.New("queue full")
	f.publisher.failOn = events.EnrollmentConfirmed
	f.parser.event = completedEvent("cs_4", map[string]string{"priceId": "price_pack", "cohort_id": cohortItalian})

	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))
	assert.Len(t, f.store.enrollments, 1)
	assert.Equal(t, []string{events.CreditsGranted}, f.publisher.keys)
}

func TestSettlementSkipsMalformedHoldID(t *testing.T) {
	f := newSettlementFixture()
	f.parser.event = &payments.Event{
		ID:      "evt_5",
		Type:    payments.EventCheckoutExpired,
		Session: &payments.CheckoutSession{ID: "cs_5", Metadata: map[string]string{"hold_id": "not-a-uuid"}},
	}

	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))
}

func TestSettlementDefaultsMissingPriceAndLang(t *testing.T) {
	f := newSettlementFixture()
	f.parser.event = completedEvent("cs_bare", map[string]string{})

	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))

	purchase := f.store.purchases["cs_bare"]
	require.NotNil(t, purchase)
	assert.Equal(t, "unknown", purchase.PriceID)
	assert.Equal(t, "unspecified", purchase.Lang)
	assert.Empty(t, f.store.credits)
}

func TestSettlementSkipsMalformedCohortID(t *testing.T) {
	f := newSettlementFixture()
	hold := f.store.addHold(cohortItalian, fixedNow.Add(10*time.Minute), "cs_6")
	f.parser.event = completedEvent("cs_6", map[string]string{"priceId": "price_pack", "cohort_id": "cohort-1", "hold_id": hold.ID})

	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))
	assert.Contains(t, f.store.purchases, "cs_6")
	assert.Len(t, f.store.credits, 1)
	assert.Empty(t, f.store.enrollments)
	assert.Empty(t, f.store.holds)
}

func TestSettlementSkipsUnknownCohort(t *testing.T) {
	f := newSettlementFixture()
	hold := f.store.addHold(cohortItalian, fixedNow.Add(10*time.Minute), "cs_7")
	f.store.enrollmentErr = fmt.Errorf("create enrollment for cohort %s: %w", cohortSpare, repository.ErrUnknownCohort)
	f.parser.event = completedEvent("cs_7", map[string]string{"priceId": "price_cohort", "cohort_id": cohortSpare, "hold_id": hold.ID})

	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))
	assert.Empty(t, f.store.enrollments)
	assert.Empty(t, f.store.holds)
	assert.Empty(t, f.publisher.keys)
}

func TestSettlingPriceCheckoutNeverTakesASeat(t *testing.T) {
	f := newSettlementFixture()
	f.store.addCohort(cohortItalian, 1, models.CohortStatusOpen, "price_cohort")
	f.store.enrollments = append(f.store.enrollments, models.Enrollment{CohortID: cohortItalian, Email: "first@example.com"})

	gw := &gatewayStub{}
	checkout := NewCheckoutService(f.store, gw, nil, NewMetricsService(), nil, nil, CheckoutConfig{FreeClassPrice: "price_free", FreeClassCoupon: "FREE100"})
	_, err := checkout.PriceCheckout(context.Background(), dto.PriceCheckoutRequest{PriceID: "price_free", Email: "late@example.com", Level: "A1"})
	require.NoError(t, err)
	require.Len(t, gw.requests, 1)
	assert.Equal(t, "FREE100", gw.requests[0].CouponID)

	f.parser.event = completedEvent("cs_test_1", gw.requests[0].Metadata)
	require.NoError(t, f.svc.HandleNotification(context.Background(), nil, "sig"))

	assert.Contains(t, f.store.purchases, "cs_test_1")
	assert.Len(t, f.store.enrollments, 1)
}
