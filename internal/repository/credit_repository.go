package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingua-api/internal/models"
)

// ErrInsufficientCredits is returned when a spend would take the balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditRepository persists the lesson credit ledger.
type CreditRepository struct {
	db *sqlx.DB
}

// NewCreditRepository constructs the repository.
func NewCreditRepository(db *sqlx.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// Insert appends a ledger entry.
func (r *CreditRepository) Insert(ctx context.Context, entry *models.CreditEntry) error {
	const query = `INSERT INTO credit_ledger (id, email, delta_credits, source, notes, created_at)
VALUES (:id, :email, :delta_credits, :source, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert credit entry: %w", err)
	}
	return nil
}

// GrantOnce appends the entry unless another entry with the same source exists.
func (r *CreditRepository) GrantOnce(ctx context.Context, entry *models.CreditEntry) (bool, error) {
	const query = `INSERT INTO credit_ledger (id, email, delta_credits, source, notes, created_at)
SELECT $1, $2, $3, $4, $5, $6
WHERE NOT EXISTS (SELECT 1 FROM credit_ledger WHERE source = $4)
ON CONFLICT DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, entry.ID, entry.Email, entry.DeltaCredits, entry.Source, entry.Notes, entry.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("grant credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("grant credits: %w", err)
	}
	return n > 0, nil
}

// Balance sums the ledger for an email.
func (r *CreditRepository) Balance(ctx context.Context, email string) (int, error) {
	var balance int
	const query = `SELECT COALESCE(SUM(delta_credits), 0) FROM credit_ledger WHERE lower(email) = lower($1)`
	if err := r.db.GetContext(ctx, &balance, query, email); err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

// Spend debits -entry.DeltaCredits after checking the balance covers it. Spends
// for the same email are serialized with a transaction-scoped advisory lock.
// It returns the balance left after the debit.
func (r *CreditRepository) Spend(ctx context.Context, entry *models.CreditEntry) (remaining int, err error) {
	if entry.DeltaCredits >= 0 {
		return 0, fmt.Errorf("spend requires a negative delta, got %d", entry.DeltaCredits)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin spend: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext(lower($1)))`, entry.Email); err != nil {
		return 0, fmt.Errorf("lock credit ledger: %w", err)
	}
	var balance int
	if err = tx.GetContext(ctx, &balance, `SELECT COALESCE(SUM(delta_credits), 0) FROM credit_ledger WHERE lower(email) = lower($1)`, entry.Email); err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	if balance+entry.DeltaCredits < 0 {
		err = ErrInsufficientCredits
		return balance, err
	}

	const insert = `INSERT INTO credit_ledger (id, email, delta_credits, source, notes, created_at)
VALUES (:id, :email, :delta_credits, :source, :notes, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, entry); err != nil {
		return 0, fmt.Errorf("insert spend: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit spend: %w", err)
	}
	return balance + entry.DeltaCredits, nil
}
