package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/models"
	"github.com/noah-isme/lingua-api/internal/repository"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/events"
	"github.com/noah-isme/lingua-api/pkg/payments"
)

const (
	defaultCurrency = "eur"
	publishTimeout  = 5 * time.Second
)

type eventParser interface {
	ParseEvent(payload []byte, signature string) (*payments.Event, error)
}

type purchaseWriter interface {
	Upsert(ctx context.Context, purchase *models.Purchase) (bool, error)
}

type creditGranter interface {
	GrantOnce(ctx context.Context, entry *models.CreditEntry) (bool, error)
}

type enrollmentCreator interface {
	CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) (bool, error)
}

type holdReleaser interface {
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	DeleteByID(ctx context.Context, holdID string) (int64, error)
}

type paymentNotifier interface {
	NotifyPayment(ctx context.Context, notice PaymentNotice) error
}

// SettlementDeps groups the collaborators of SettlementService.
type SettlementDeps struct {
	Parser       eventParser
	Purchases    purchaseWriter
	Credits      creditGranter
	Enrollments  enrollmentCreator
	Holds        holdReleaser
	Notifier     paymentNotifier
	Publisher    events.Publisher
	Catalog      catalogInvalidator
	Metrics      *MetricsService
	Logger       *zap.Logger
	PriceCredits map[string]int
}

// SettlementService applies authenticated payment notifications. Every write
// is idempotent on the session id so processor retries converge.
type SettlementService struct {
	parser       eventParser
	purchases    purchaseWriter
	credits      creditGranter
	enrollments  enrollmentCreator
	holds        holdReleaser
	notifier     paymentNotifier
	publisher    events.Publisher
	catalog      catalogInvalidator
	metrics      *MetricsService
	logger       *zap.Logger
	priceCredits map[string]int
	now          func() time.Time
}

// NewSettlementService constructs the webhook processor.
func NewSettlementService(deps SettlementDeps) *SettlementService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.PriceCredits == nil {
		deps.PriceCredits = map[string]int{}
	}
	return &SettlementService{
		parser:       deps.Parser,
		purchases:    deps.Purchases,
		credits:      deps.Credits,
		enrollments:  deps.Enrollments,
		holds:        deps.Holds,
		notifier:     deps.Notifier,
		publisher:    deps.Publisher,
		catalog:      deps.Catalog,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		priceCredits: deps.PriceCredits,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type settlementResult struct {
	purchaseInserted  bool
	creditsGranted    int
	enrollmentCreated bool
	holdsReleased     int64
}

// HandleNotification verifies and applies one webhook delivery. An invalid
// signature touches nothing; a storage failure returns an internal error so
// the processor redelivers.
func (s *SettlementService) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	event, err := s.parser.ParseEvent(payload, signature)
	if err != nil {
		s.metrics.RecordSettlement("unknown", OutcomeInvalid)
		s.logger.Warn("rejected webhook", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInvalidSignature.Code, appErrors.ErrInvalidSignature.Status, appErrors.ErrInvalidSignature.Message)
	}

	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	if !event.IsCheckoutEvent() || event.Session == nil {
		s.metrics.RecordSettlement(event.Type, OutcomeIgnored)
		log.Debug("ignored webhook event")
		return nil
	}
	log = log.With(zap.String("session_id", event.Session.ID))

	switch event.Type {
	case payments.EventCheckoutCompleted, payments.EventCheckoutAsyncSucceeded:
		err = s.settle(ctx, log, event.Session)
	default:
		err = s.release(ctx, log, event)
	}
	if err != nil {
		s.metrics.RecordSettlement(event.Type, OutcomeError)
		log.Error("failed to apply webhook", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "webhook processing failed")
	}
	s.metrics.RecordSettlement(event.Type, OutcomeSuccess)
	return nil
}

func (s *SettlementService) settle(ctx context.Context, log *zap.Logger, cs *payments.CheckoutSession) error {
	meta := cs.Metadata
	email := strings.ToLower(strings.TrimSpace(cs.Email))
	currency := strings.ToLower(cs.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	priceID := strings.TrimSpace(meta["priceId"])
	if priceID == "" {
		priceID = unknownPrice
	}
	lang := strings.TrimSpace(meta["lang"])
	if lang == "" {
		lang = unspecifiedLang
	}
	cohortID := strings.TrimSpace(meta["cohort_id"])

	purchaseMeta, err := json.Marshal(map[string]string{
		"level":      meta["level"],
		"cohort_id":  cohortID,
		"start_date": meta["start_date"],
		"label":      meta["label"],
	})
	if err != nil {
		return fmt.Errorf("encode purchase metadata: %w", err)
	}

	now := s.now()
	var result settlementResult
	purchase := &models.Purchase{
		ID:          uuid.NewString(),
		SessionID:   cs.ID,
		Email:       email,
		PriceID:     priceID,
		AmountTotal: cs.AmountTotal,
		Currency:    currency,
		Status:      models.PurchaseStatusCompleted,
		Lang:        lang,
		Metadata:    purchaseMeta,
		CreatedAt:   now,
	}
	if result.purchaseInserted, err = s.purchases.Upsert(ctx, purchase); err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}

	credits := s.priceCredits[priceID]
	if credits > 0 && email != "" {
		granted, err := s.credits.GrantOnce(ctx, &models.CreditEntry{
			ID:           uuid.NewString(),
			Email:        email,
			DeltaCredits: credits,
			Source:       models.PurchaseCreditSource(cs.ID),
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
		if granted {
			result.creditsGranted = credits
		}
	}

	if email != "" && cohortID != "" {
		if result.enrollmentCreated, err = s.enroll(ctx, log, email, cohortID, now); err != nil {
			return err
		}
	}

	if result.holdsReleased, err = s.releaseHolds(ctx, cs); err != nil {
		return err
	}
	s.metrics.RecordHoldsReleased("settled", result.holdsReleased)

	log.Info("checkout settled",
		zap.Bool("new_purchase", result.purchaseInserted),
		zap.Int("credits_granted", result.creditsGranted),
		zap.Bool("enrollment_created", result.enrollmentCreated),
		zap.Int64("holds_released", result.holdsReleased),
	)
	s.afterSettle(ctx, log, cs, purchase, result, credits)
	return nil
}

// enroll confirms the seat. A cohort id that is not a uuid or names no cohort
// can never succeed, so it is logged and skipped to let the hold release run.
func (s *SettlementService) enroll(ctx context.Context, log *zap.Logger, email, cohortID string, now time.Time) (bool, error) {
	if _, err := uuid.Parse(cohortID); err != nil {
		log.Warn("skipping enrollment for malformed cohort id", zap.String("cohort_id", cohortID))
		return false, nil
	}
	created, err := s.enrollments.CreateIfAbsent(ctx, &models.Enrollment{
		ID:        uuid.NewString(),
		Email:     email,
		CohortID:  cohortID,
		Status:    models.EnrollmentStatusConfirmed,
		Source:    models.EnrollmentSourceStripe,
		CreatedAt: now,
	})
	if errors.Is(err, repository.ErrUnknownCohort) {
		log.Warn("skipping enrollment for unknown cohort", zap.String("cohort_id", cohortID))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	return created, nil
}

// afterSettle runs the side effects that must never fail the webhook.
func (s *SettlementService) afterSettle(ctx context.Context, log *zap.Logger, cs *payments.CheckoutSession, purchase *models.Purchase, result settlementResult, credits int) {
	// A redelivery after a partial failure still notifies once, when the
	// first new row lands.
	fresh := result.purchaseInserted || result.creditsGranted > 0 || result.enrollmentCreated
	if fresh && purchase.Email != "" && s.notifier != nil {
		notice := PaymentNotice{
			SessionID:   cs.ID,
			Email:       purchase.Email,
			AmountTotal: purchase.AmountTotal,
			Currency:    purchase.Currency,
			Credits:     credits,
			Label:       cs.Metadata["label"],
		}
		if err := s.notifier.NotifyPayment(ctx, notice); err != nil {
			log.Warn("failed to queue payment notification", zap.Error(err))
		}
	}
	if result.enrollmentCreated {
		s.publish(ctx, log, events.EnrollmentConfirmed, map[string]string{
			"email":      purchase.Email,
			"cohort_id":  cs.Metadata["cohort_id"],
			"session_id": cs.ID,
		})
	}
	if result.creditsGranted > 0 {
		s.publish(ctx, log, events.CreditsGranted, map[string]interface{}{
			"email":      purchase.Email,
			"credits":    result.creditsGranted,
			"session_id": cs.ID,
		})
	}
	if result.enrollmentCreated || result.holdsReleased > 0 {
		s.invalidateCatalog(ctx)
	}
}

func (s *SettlementService) release(ctx context.Context, log *zap.Logger, event *payments.Event) error {
	cs := event.Session
	n, err := s.releaseHolds(ctx, cs)
	if err != nil {
		return err
	}
	reason := "expired"
	if event.Type == payments.EventCheckoutAsyncPaymentFailed {
		reason = "payment_failed"
	}
	s.metrics.RecordHoldsReleased(reason, n)
	log.Info("checkout abandoned, holds released", zap.String("reason", reason), zap.Int64("holds_released", n))

	s.publish(ctx, log, events.HoldReleased, map[string]interface{}{
		"session_id": cs.ID,
		"hold_id":    cs.Metadata["hold_id"],
		"cohort_id":  cs.Metadata["cohort_id"],
		"reason":     reason,
		"released":   n,
	})
	if n > 0 {
		s.invalidateCatalog(ctx)
	}
	return nil
}

// releaseHolds deletes the holds linked to the session plus the one named in
// the metadata, which covers holds whose link step failed.
func (s *SettlementService) releaseHolds(ctx context.Context, cs *payments.CheckoutSession) (int64, error) {
	total, err := s.holds.DeleteBySession(ctx, cs.ID)
	if err != nil {
		return 0, fmt.Errorf("release holds by session: %w", err)
	}
	holdID := strings.TrimSpace(cs.Metadata["hold_id"])
	if holdID == "" {
		return total, nil
	}
	if _, err := uuid.Parse(holdID); err != nil {
		s.logger.Warn("ignoring malformed hold id in metadata", zap.String("hold_id", holdID))
		return total, nil
	}
	n, err := s.holds.DeleteByID(ctx, holdID)
	if err != nil {
		return total, fmt.Errorf("release hold %s: %w", holdID, err)
	}
	return total + n, nil
}

func (s *SettlementService) publish(ctx context.Context, log *zap.Logger, routingKey string, data interface{}) {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, routingKey, data); err != nil {
		log.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

func (s *SettlementService) invalidateCatalog(ctx context.Context) {
	if s.catalog != nil {
		s.catalog.InvalidateOpenCohorts(ctx)
	}
}
