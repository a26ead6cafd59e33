package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingua-api/internal/models"
)

const purchaseColumns = `id, session_id, email, price_id, amount_total, currency, status, lang, metadata, created_at`

// exportLimit caps report exports.
const exportLimit = 5000

// PurchaseRepository persists the purchase log.
type PurchaseRepository struct {
	db *sqlx.DB
}

// NewPurchaseRepository constructs the repository.
func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Upsert writes the purchase keyed by session id. A replayed session updates
// the existing row in place. ID and CreatedAt are refreshed from the stored row
// and the result reports whether the row is new.
func (r *PurchaseRepository) Upsert(ctx context.Context, purchase *models.Purchase) (inserted bool, err error) {
	const query = `INSERT INTO purchases (id, session_id, email, price_id, amount_total, currency, status, lang, metadata, created_at)
VALUES (:id, :session_id, :email, :price_id, :amount_total, :currency, :status, :lang, :metadata, :created_at)
ON CONFLICT (session_id) DO UPDATE SET
	email = EXCLUDED.email,
	price_id = EXCLUDED.price_id,
	amount_total = EXCLUDED.amount_total,
	currency = EXCLUDED.currency,
	status = EXCLUDED.status,
	lang = EXCLUDED.lang,
	metadata = EXCLUDED.metadata
RETURNING id, created_at, (xmax = 0) AS inserted`

	rows, err := r.db.NamedQueryContext(ctx, query, purchase)
	if err != nil {
		return false, fmt.Errorf("upsert purchase: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&purchase.ID, &purchase.CreatedAt, &inserted); err != nil {
			return false, fmt.Errorf("scan upserted purchase: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("upsert purchase: %w", err)
	}
	return inserted, nil
}

// FindBySession returns the purchase for a checkout session or sql.ErrNoRows.
func (r *PurchaseRepository) FindBySession(ctx context.Context, sessionID string) (*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE session_id = $1`
	var purchase models.Purchase
	if err := r.db.GetContext(ctx, &purchase, query, sessionID); err != nil {
		return nil, err
	}
	return &purchase, nil
}

// List returns a page of purchases, newest first.
func (r *PurchaseRepository) List(ctx context.Context, filter models.PurchaseFilter) ([]models.Purchase, int, error) {
	clause := ""
	var args []interface{}
	if filter.Email != "" {
		args = append(args, filter.Email)
		clause = " WHERE lower(email) = lower($1)"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM purchases%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, purchaseColumns, clause, size, offset)
	var items []models.Purchase
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM purchases`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}
	return items, total, nil
}

// ListForExport returns up to exportLimit purchases, newest first.
func (r *PurchaseRepository) ListForExport(ctx context.Context) ([]models.Purchase, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchases ORDER BY created_at DESC LIMIT %d`, purchaseColumns, exportLimit)
	var items []models.Purchase
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("export purchases: %w", err)
	}
	return items, nil
}
