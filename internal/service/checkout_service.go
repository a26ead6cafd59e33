package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/internal/models"
	"github.com/noah-isme/lingua-api/internal/repository"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/payments"
)

const (
	defaultHoldTTL      = 15 * time.Minute
	compensationTimeout = 5 * time.Second
	unspecifiedLang     = "unspecified"
	unknownPrice        = "unknown"
)

var (
	errCohortNotOpen = appErrors.Clone(appErrors.ErrConflict, "cohort not open")
	errCohortNoPrice = appErrors.Clone(appErrors.ErrConflict, "cohort has no price configured")
	errCohortFull    = appErrors.Clone(appErrors.ErrConflict, "cohort is full")
)

type checkoutHoldRepository interface {
	Reserve(ctx context.Context, params repository.ReserveParams, admit repository.AdmitFunc) (*models.Hold, *models.CohortOccupancy, error)
	AttachSession(ctx context.Context, holdID, sessionID string) error
	DeleteByID(ctx context.Context, holdID string) (int64, error)
}

type checkoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
}

type catalogInvalidator interface {
	InvalidateOpenCohorts(ctx context.Context)
}

// CheckoutConfig tunes checkout behaviour.
type CheckoutConfig struct {
	SiteURL         string
	HoldTTL         time.Duration
	FreeClassPrice  string
	FreeClassCoupon string
}

// checkoutState tracks how far a cohort checkout got, which decides the
// compensation owed when the next step fails.
type checkoutState int

const (
	stateInitiated checkoutState = iota
	stateHoldCreated
	stateSessionRequested
	stateSessionLinked
)

func (s checkoutState) String() string {
	switch s {
	case stateInitiated:
		return "initiated"
	case stateHoldCreated:
		return "hold_created"
	case stateSessionRequested:
		return "session_requested"
	case stateSessionLinked:
		return "session_linked"
	}
	return "unknown"
}

type checkoutAttempt struct {
	state   checkoutState
	hold    *models.Hold
	session *payments.Session
}

// CheckoutService reserves cohort seats and opens payment sessions.
type CheckoutService struct {
	holds     checkoutHoldRepository
	gateway   checkoutGateway
	catalog   catalogInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CheckoutConfig
	now       func() time.Time
}

// NewCheckoutService constructs the checkout orchestrator.
func NewCheckoutService(holds checkoutHoldRepository, gateway checkoutGateway, catalog catalogInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg CheckoutConfig) *CheckoutService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = defaultHoldTTL
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &CheckoutService{
		holds:     holds,
		gateway:   gateway,
		catalog:   catalog,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InitiateCheckout holds a seat in the cohort and returns the processor
// redirect URL. A processor failure deletes the hold before returning.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, req dto.CheckoutSessionRequest) (*dto.CheckoutResponse, error) {
	req.CohortID = strings.TrimSpace(req.CohortID)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordCheckout(OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cohort_id and lang (Italian or German) are required")
	}
	if _, err := uuid.Parse(req.CohortID); err != nil {
		s.metrics.RecordCheckout(OutcomeNotFound)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
	}

	attempt := &checkoutAttempt{state: stateInitiated}
	log := s.logger.With(zap.String("cohort_id", req.CohortID))

	var email *string
	if req.Email != "" {
		email = &req.Email
	}
	hold, cohort, err := s.holds.Reserve(ctx, repository.ReserveParams{
		CohortID: req.CohortID,
		Email:    email,
		Now:      s.now(),
		TTL:      s.cfg.HoldTTL,
	}, admitCheckout)
	if err != nil {
		return nil, s.reserveFailure(log, err)
	}
	attempt.hold = hold
	attempt.state = stateHoldCreated
	s.invalidateCatalog(ctx)

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.SessionRequest{
		PriceID:       cohort.Price(),
		CustomerEmail: req.Email,
		SuccessURL:    s.cfg.SiteURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.SiteURL + "/pricing?canceled=1",
		Metadata: map[string]string{
			"priceId":    cohort.Price(),
			"lang":       req.Lang,
			"cohort_id":  req.CohortID,
			"level":      cohort.Level,
			"start_date": cohort.StartDateString(),
			"label":      cohort.Label,
			"hold_id":    hold.ID,
		},
	})
	if err != nil {
		s.compensate(ctx, log, attempt, err)
		s.metrics.RecordCheckout(OutcomeUpstreamFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, upstreamMessage(err))
	}
	attempt.session = session
	attempt.state = stateSessionRequested

	if err := s.holds.AttachSession(ctx, hold.ID, session.ID); err != nil {
		s.compensate(ctx, log, attempt, err)
	} else {
		attempt.state = stateSessionLinked
	}

	log.Info("checkout session created",
		zap.String("hold_id", hold.ID),
		zap.String("session_id", session.ID),
		zap.Stringer("state", attempt.state),
	)
	s.metrics.RecordCheckout(OutcomeSuccess)
	return &dto.CheckoutResponse{URL: session.URL}, nil
}

// admitCheckout runs under the cohort row lock.
func admitCheckout(occ models.CohortOccupancy) error {
	if !occ.IsOpen() {
		return errCohortNotOpen
	}
	if occ.Price() == "" {
		return errCohortNoPrice
	}
	if ComputeSeats(occ.Capacity, occ.Enrolled, occ.ActiveHolds).Full {
		return errCohortFull
	}
	return nil
}

func (s *CheckoutService) reserveFailure(log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.metrics.RecordCheckout(OutcomeNotFound)
		return appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
	case err == errCohortFull:
		s.metrics.RecordCheckout(OutcomeFull)
		return err
	case err == errCohortNotOpen || err == errCohortNoPrice:
		s.metrics.RecordCheckout(OutcomeConflict)
		return err
	}
	log.Error("failed to create seat hold", zap.Error(err))
	s.metrics.RecordCheckout(OutcomeError)
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not create seat hold")
}

// compensate undoes the effects of the state reached before cause.
func (s *CheckoutService) compensate(ctx context.Context, log *zap.Logger, attempt *checkoutAttempt, cause error) {
	switch attempt.state {
	case stateHoldCreated:
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
		defer cancel()
		n, err := s.holds.DeleteByID(cctx, attempt.hold.ID)
		if err != nil {
			log.Error("failed to release hold after processor error; it will lapse at expiry",
				zap.String("hold_id", attempt.hold.ID),
				zap.Time("expires_at", attempt.hold.ExpiresAt),
				zap.NamedError("cause", cause),
				zap.Error(err),
			)
			return
		}
		s.metrics.RecordHoldsReleased("compensation", n)
		s.invalidateCatalog(cctx)
		log.Warn("hold released after processor error", zap.String("hold_id", attempt.hold.ID), zap.Error(cause))
	case stateSessionRequested:
		// The hold id travels in the session metadata, so settlement can still
		// release this hold without the link.
		log.Warn("failed to link hold to checkout session",
			zap.String("hold_id", attempt.hold.ID),
			zap.String("session_id", attempt.session.ID),
			zap.Error(cause),
		)
	}
}

func (s *CheckoutService) invalidateCatalog(ctx context.Context) {
	if s.catalog != nil {
		s.catalog.InvalidateOpenCohorts(ctx)
	}
}

// PriceCheckout opens a payment session for a bare price without holding a
// seat. The session never names a cohort, so settling it cannot enroll anyone.
func (s *CheckoutService) PriceCheckout(ctx context.Context, req dto.PriceCheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordCheckout(OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "missing or invalid price_id")
	}
	priceID := ExtractPriceID(req.PriceID)
	if priceID == "" {
		s.metrics.RecordCheckout(OutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, "price_id must be a price_ or pr_ identifier")
	}
	lang := strings.TrimSpace(req.Lang)
	if lang == "" {
		lang = unspecifiedLang
	}

	sessionReq := payments.SessionRequest{
		PriceID:       priceID,
		CustomerEmail: strings.TrimSpace(req.Email),
		SuccessURL:    s.cfg.SiteURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.SiteURL + "/pricing?canceled=1",
		Metadata: map[string]string{
			"priceId":    priceID,
			"lang":       lang,
			"level":      req.Level,
			"start_date": req.StartDate,
		},
	}
	if priceID == s.cfg.FreeClassPrice && s.cfg.FreeClassCoupon != "" {
		sessionReq.CouponID = s.cfg.FreeClassCoupon
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		s.metrics.RecordCheckout(OutcomeUpstreamFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, upstreamMessage(err))
	}
	s.metrics.RecordCheckout(OutcomeSuccess)
	return &dto.CheckoutResponse{URL: session.URL}, nil
}

// ExtractPriceID accepts "price_x", "pr_x" or "SOME_KEY=price_x" and returns
// the bare id, or "" for anything else.
func ExtractPriceID(input string) string {
	candidate := strings.TrimSpace(input)
	if i := strings.LastIndex(candidate, "="); i >= 0 {
		candidate = strings.TrimSpace(candidate[i+1:])
	}
	if strings.HasPrefix(candidate, "price_") || strings.HasPrefix(candidate, "pr_") {
		return candidate
	}
	return ""
}

func upstreamMessage(err error) string {
	var perr *payments.ProcessorError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return appErrors.ErrUpstream.Message
}
