package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingua-api/internal/models"
)

// AdmitFunc decides, under the cohort row lock, whether a new hold may be placed.
type AdmitFunc func(occupancy models.CohortOccupancy) error

// ReserveParams describes a seat reservation attempt.
type ReserveParams struct {
	CohortID string
	Email    *string
	Now      time.Time
	TTL      time.Duration
}

// HoldRepository persists seat holds.
type HoldRepository struct {
	db *sqlx.DB
}

// NewHoldRepository constructs the repository.
func NewHoldRepository(db *sqlx.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// Reserve locks the cohort row, counts enrollments and active holds, asks admit
// for a verdict and inserts the hold, all in one transaction. Concurrent
// reservations for the same cohort are serialized by the row lock. A missing
// cohort, or an id Postgres cannot read as a uuid, yields sql.ErrNoRows; an
// admit error is returned unchanged.
func (r *HoldRepository) Reserve(ctx context.Context, params ReserveParams, admit AdmitFunc) (hold *models.Hold, occupancy *models.CohortOccupancy, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var occ models.CohortOccupancy
	const lockQuery = `SELECT id, label, language, level, start_date, schedule, capacity, status, price_id, created_at
FROM cohorts WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &occ.Cohort, lockQuery, params.CohortID); err != nil {
		if pqCode(err) == pqInvalidTextRepresentation {
			err = fmt.Errorf("cohort %q: %w", params.CohortID, sql.ErrNoRows)
		}
		return nil, nil, err
	}

	if err = tx.GetContext(ctx, &occ.Enrolled, `SELECT COUNT(*) FROM enrollments WHERE cohort_id = $1`, params.CohortID); err != nil {
		return nil, nil, fmt.Errorf("count enrollments: %w", err)
	}
	if err = tx.GetContext(ctx, &occ.ActiveHolds, `SELECT COUNT(*) FROM cohort_holds WHERE cohort_id = $1 AND expires_at > $2`, params.CohortID, params.Now); err != nil {
		return nil, nil, fmt.Errorf("count active holds: %w", err)
	}

	if err = admit(occ); err != nil {
		return nil, &occ, err
	}

	h := &models.Hold{
		ID:        uuid.NewString(),
		CohortID:  params.CohortID,
		Email:     params.Email,
		ExpiresAt: params.Now.Add(params.TTL),
		CreatedAt: params.Now,
	}
	const insert = `INSERT INTO cohort_holds (id, cohort_id, email, expires_at, created_at) VALUES (:id, :cohort_id, :email, :expires_at, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, h); err != nil {
		return nil, &occ, fmt.Errorf("insert hold: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, &occ, fmt.Errorf("commit reserve: %w", err)
	}
	return h, &occ, nil
}

// AttachSession links a hold to its checkout session.
func (r *HoldRepository) AttachSession(ctx context.Context, holdID, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cohort_holds SET session_id = $1 WHERE id = $2`, sessionID, holdID)
	if err != nil {
		return fmt.Errorf("attach session to hold %s: %w", holdID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("attach session to hold %s: hold not found", holdID)
	}
	return nil
}

// DeleteByID removes a hold and reports how many rows went away.
func (r *HoldRepository) DeleteByID(ctx context.Context, holdID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cohort_holds WHERE id = $1`, holdID)
	if err != nil {
		return 0, fmt.Errorf("delete hold %s: %w", holdID, err)
	}
	return res.RowsAffected()
}

// DeleteBySession removes every hold linked to a checkout session.
func (r *HoldRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cohort_holds WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete holds for session %s: %w", sessionID, err)
	}
	return res.RowsAffected()
}

// PurgeExpired deletes holds that stopped counting at or before now.
func (r *HoldRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cohort_holds WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired holds: %w", err)
	}
	return res.RowsAffected()
}
