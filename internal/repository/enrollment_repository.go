package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingua-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateIfAbsent inserts the enrollment unless the email already holds a row
// in the cohort. It reports whether a row was written. A cohort id that does
// not resolve yields ErrUnknownCohort.
func (r *EnrollmentRepository) CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	const query = `INSERT INTO enrollments (id, email, cohort_id, status, source, created_at)
SELECT $1, $2, $3, $4, $5, $6
WHERE NOT EXISTS (
	SELECT 1 FROM enrollments WHERE cohort_id = $3 AND lower(email) = lower($2)
)
ON CONFLICT DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.Email,
		enrollment.CohortID,
		enrollment.Status,
		enrollment.Source,
		enrollment.CreatedAt,
	)
	if err != nil {
		switch pqCode(err) {
		case pqForeignKeyViolation, pqInvalidTextRepresentation:
			return false, fmt.Errorf("create enrollment for cohort %s: %w", enrollment.CohortID, ErrUnknownCohort)
		}
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}
	return n > 0, nil
}

// ListByEmail returns the learner's enrollments with cohort details, newest cohorts first.
func (r *EnrollmentRepository) ListByEmail(ctx context.Context, email string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.email, e.cohort_id, e.status, e.source, e.created_at,
	c.label AS cohort_label, c.language, c.level, c.start_date, c.schedule
FROM enrollments e
JOIN cohorts c ON c.id = e.cohort_id
WHERE lower(e.email) = lower($1)
ORDER BY c.start_date DESC NULLS LAST, e.created_at DESC`
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, email); err != nil {
		return nil, fmt.Errorf("list enrollments for email: %w", err)
	}
	return items, nil
}
