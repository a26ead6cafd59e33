package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/internal/models"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/export"
)

type adminPurchaseReader interface {
	List(ctx context.Context, filter models.PurchaseFilter) ([]models.Purchase, int, error)
	ListForExport(ctx context.Context) ([]models.Purchase, error)
}

type adminCreditLedger interface {
	Insert(ctx context.Context, entry *models.CreditEntry) error
	Balance(ctx context.Context, email string) (int, error)
}

type expiredHoldPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// AdminService backs the staff-only endpoints.
type AdminService struct {
	purchases adminPurchaseReader
	credits   adminCreditLedger
	holds     expiredHoldPurger
	catalog   catalogInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminService constructs the admin service.
func NewAdminService(purchases adminPurchaseReader, credits adminCreditLedger, holds expiredHoldPurger, catalog catalogInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		purchases: purchases,
		credits:   credits,
		holds:     holds,
		catalog:   catalog,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListPurchases returns a page of the purchase log.
func (s *AdminService) ListPurchases(ctx context.Context, filter models.PurchaseFilter) ([]models.Purchase, *models.Pagination, error) {
	filter.Email = strings.TrimSpace(filter.Email)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.purchases.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list purchases")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ExportPurchases renders the purchase log as CSV or PDF.
func (s *AdminService) ExportPurchases(ctx context.Context, format dto.ExportFormat) (*dto.ExportFile, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	items, err := s.purchases.ListForExport(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load purchases")
	}

	table := purchaseTable(items)
	stamp := s.now().Format("20060102-150405")
	var file dto.ExportFile
	switch format {
	case dto.ExportFormatPDF:
		file.Body, err = export.PDF(*table)
		file.ContentType = "application/pdf"
	default:
		file.Body, err = export.CSV(*table)
		file.ContentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	file.Filename = fmt.Sprintf("purchases-%s.%s", stamp, format)
	return &file, nil
}

func purchaseTable(items []models.Purchase) *export.Table {
	table := &export.Table{
		Title:   "Purchases",
		Columns: []string{"Date", "Email", "Amount", "Price", "Language", "Cohort", "Session"},
	}
	for _, p := range items {
		var meta map[string]string
		if len(p.Metadata) > 0 {
			_ = json.Unmarshal(p.Metadata, &meta)
		}
		table.AddRow(
			p.CreatedAt.UTC().Format("2006-01-02 15:04"),
			p.Email,
			export.FormatAmount(p.AmountTotal, p.Currency),
			p.PriceID,
			p.Lang,
			meta["label"],
			p.SessionID,
		)
	}
	return table
}

// AdjustCredits appends a manual ledger entry on behalf of admin.
func (s *AdminService) AdjustCredits(ctx context.Context, admin *models.JWTClaims, req dto.AdjustCreditsRequest) (*dto.AdjustCreditsResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and a non-zero delta between -1000 and 1000 are required")
	}

	entry := &models.CreditEntry{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DeltaCredits: req.Delta,
		Source:       models.ManualCreditSource(admin.NormalizedEmail()),
		CreatedAt:    s.now(),
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		entry.Notes = &notes
	}
	if err := s.credits.Insert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust credits")
	}
	balance, err := s.credits.Balance(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}

	s.logger.Info("credits adjusted",
		zap.String("admin", admin.NormalizedEmail()),
		zap.String("email", req.Email),
		zap.Int("delta", req.Delta),
		zap.Int("balance", balance),
	)
	return &dto.AdjustCreditsResponse{EntryID: entry.ID, Email: req.Email, Delta: req.Delta, Balance: balance}, nil
}

// PurgeExpiredHolds deletes holds that no longer count against capacity.
func (s *AdminService) PurgeExpiredHolds(ctx context.Context) (*dto.PurgeHoldsResponse, error) {
	n, err := s.holds.PurgeExpired(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge holds")
	}
	s.metrics.RecordHoldsReleased("purged", n)
	if n > 0 && s.catalog != nil {
		s.catalog.InvalidateOpenCohorts(ctx)
	}
	return &dto.PurgeHoldsResponse{Deleted: n}, nil
}
