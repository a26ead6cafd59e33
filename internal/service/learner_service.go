package service

import (
	"context"
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
)

const learnerPurchaseLimit = 100

type learnerEnrollmentReader interface {
	ListByEmail(ctx context.Context, email string) ([]models.EnrollmentDetail, error)
}

type learnerCreditLedger interface {
	Balance(ctx context.Context, email string) (int, error)
	Spend(ctx context.Context, entry *models.CreditEntry) (int, error)
}

type learnerPurchaseReader interface {
	List(ctx context.Context, filter models.PurchaseFilter) ([]models.Purchase, int, error)
}

// LearnerService serves the signed-in learner's dashboard.
type LearnerService struct {
	enrollments learnerEnrollmentReader
	credits     learnerCreditLedger
	purchases   learnerPurchaseReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLearnerService constructs the dashboard service.
func NewLearnerService(enrollments learnerEnrollmentReader, credits learnerCreditLedger, purchases learnerPurchaseReader, validate *validator.Validate, logger *zap.Logger) *LearnerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearnerService{enrollments: enrollments, credits: credits, purchases: purchases, validator: validate, logger: logger}
}

// Enrollments lists the learner's cohort seats.
func (s *LearnerService) Enrollments(ctx context.Context, claims *models.JWTClaims) ([]models.EnrollmentDetail, error) {
	email, err := learnerEmail(claims)
	if err != nil {
		return nil, err
	}
	items, err := s.enrollments.ListByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return items, nil
}

// Credits returns the learner's lesson credit balance.
func (s *LearnerService) Credits(ctx context.Context, claims *models.JWTClaims) (*dto.CreditBalanceResponse, error) {
	email, err := learnerEmail(claims)
	if err != nil {
		return nil, err
	}
	balance, err := s.credits.Balance(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credits")
	}
	return &dto.CreditBalanceResponse{Email: email, Credits: balance}, nil
}

// Purchases lists the learner's most recent purchases.
func (s *LearnerService) Purchases(ctx context.Context, claims *models.JWTClaims) ([]models.Purchase, error) {
	email, err := learnerEmail(claims)
	if err != nil {
		return nil, err
	}
	items, _, err := s.purchases.List(ctx, models.PurchaseFilter{Email: email, Page: 1, PageSize: learnerPurchaseLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list purchases")
	}
	return items, nil
}

// BookLesson spends one credit on a paid lesson slot.
func (s *LearnerService) BookLesson(ctx context.Context, claims *models.JWTClaims, req dto.BookLessonRequest) (*dto.BookLessonResponse, error) {
	email, err := learnerEmail(claims)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "when is required")
	}
	when, err := time.Parse(time.RFC3339, strings.TrimSpace(req.When))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "when must be an RFC3339 timestamp")
	}

	bookingID := uuid.NewString()
	notes := "Booked " + when.UTC().Format(time.RFC3339)
	if extra := strings.TrimSpace(req.Notes); extra != "" {
		notes += ": " + extra
	}
	remaining, err := s.credits.Spend(ctx, &models.CreditEntry{
		ID:           uuid.NewString(),
		Email:        email,
		DeltaCredits: -1,
		Source:       models.BookingCreditSource(bookingID),
		Notes:        &notes,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			return nil, appErrors.Clone(appErrors.ErrPaymentRequired, "not enough credits")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book lesson")
	}

	s.logger.Info("lesson booked", zap.String("booking_id", bookingID), zap.String("user_id", claims.UserID()))
	return &dto.BookLessonResponse{
		BookingID:        bookingID,
		When:             when.UTC().Format(time.RFC3339),
		RemainingCredits: remaining,
	}, nil
}

func learnerEmail(claims *models.JWTClaims) (string, error) {
	email := claims.NormalizedEmail()
	if email == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "token has no email")
	}
	return email, nil
}
