package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/internal/models"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/export"
	"github.com/noah-isme/lingua-api/pkg/signing"
)

type receiptTokenParser interface {
	Parse(token string) (string, error)
}

type purchaseFinder interface {
	FindBySession(ctx context.Context, sessionID string) (*models.Purchase, error)
}

// ReceiptService renders PDF receipts behind signed links.
type ReceiptService struct {
	tokens       receiptTokenParser
	purchases    purchaseFinder
	priceCredits map[string]int
	business     string
	logger       *zap.Logger
}

// NewReceiptService constructs the receipt renderer.
func NewReceiptService(tokens receiptTokenParser, purchases purchaseFinder, priceCredits map[string]int, business string, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if business == "" {
		business = "Lingua By"
	}
	return &ReceiptService{tokens: tokens, purchases: purchases, priceCredits: priceCredits, business: business, logger: logger}
}

// Render resolves token to a purchase and returns its receipt.
func (s *ReceiptService) Render(ctx context.Context, token string) (*dto.ExportFile, error) {
	sessionID, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, signing.ErrExpiredToken) {
			return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "receipt link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "receipt not found")
	}

	purchase, err := s.purchases.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load purchase")
	}

	body, err := export.ReceiptPDF(export.Receipt{
		Business:    s.business,
		Reference:   purchase.SessionID,
		Email:       purchase.Email,
		Description: describePurchase(purchase),
		AmountMinor: purchase.AmountTotal,
		Currency:    purchase.Currency,
		Credits:     s.priceCredits[purchase.PriceID],
		PaidAt:      purchase.CreatedAt,
	})
	if err != nil {
		s.logger.Error("failed to render receipt", zap.String("session_id", sessionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return &dto.ExportFile{
		Filename:    "receipt-" + purchase.SessionID + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func describePurchase(p *models.Purchase) string {
	var meta map[string]string
	if len(p.Metadata) > 0 && json.Unmarshal(p.Metadata, &meta) == nil && meta["label"] != "" {
		return meta["label"]
	}
	if p.Lang != "" && p.Lang != unspecifiedLang {
		return p.Lang + " lessons"
	}
	return "Language lessons"
}
