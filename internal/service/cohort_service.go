package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/internal/models"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
)

const (
	openCohortsKeyPrefix = "cohorts:open:"
	openCohortsPattern   = openCohortsKeyPrefix + "*"
)

type cohortLister interface {
	ListOpenWithOccupancy(ctx context.Context, language string, now time.Time) ([]models.CohortOccupancy, error)
}

// CohortService serves the public listing of open cohorts.
type CohortService struct {
	repo   cohortLister
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCohortService constructs the catalog service. cache may be nil.
func NewCohortService(repo cohortLister, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CohortService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortService{repo: repo, cache: cache, ttl: ttl, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ListOpen returns open cohorts, optionally for one language, with seats left.
func (s *CohortService) ListOpen(ctx context.Context, language string) ([]dto.CohortListing, error) {
	language = strings.TrimSpace(language)
	key := openCohortsKeyPrefix + cacheSegment(language)

	var cached []dto.CohortListing
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.ListOpenWithOccupancy(ctx, language, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohorts")
	}
	listings := make([]dto.CohortListing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, toCohortListing(row))
	}
	s.cache.Set(ctx, key, listings, s.ttl)
	return listings, nil
}

// InvalidateOpenCohorts drops every cached listing.
func (s *CohortService) InvalidateOpenCohorts(ctx context.Context) {
	s.cache.Invalidate(ctx, openCohortsPattern)
}

func toCohortListing(row models.CohortOccupancy) dto.CohortListing {
	seats := ComputeSeats(row.Capacity, row.Enrolled, row.ActiveHolds)
	return dto.CohortListing{
		ID:          row.ID,
		Label:       row.Label,
		Language:    row.Language,
		Level:       row.Level,
		StartDate:   row.StartDateString(),
		Schedule:    row.Schedule,
		Capacity:    seats.Capacity,
		Enrolled:    seats.Enrolled,
		ActiveHolds: seats.ActiveHolds,
		SeatsLeft:   seats.Left,
		Full:        seats.Full,
		Purchasable: row.IsOpen() && row.Price() != "" && !seats.Full,
	}
}

func cacheSegment(language string) string {
	if language == "" {
		return "all"
	}
	return strings.ToLower(language)
}
