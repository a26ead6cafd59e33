package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingua-api/internal/models"
)

const cohortColumns = `c.id, c.label, c.language, c.level, c.start_date, c.schedule, c.capacity, c.status, c.price_id, c.created_at`

// CohortRepository reads cohorts. Capacity and status are maintained by staff
// tooling and are never written here.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository constructs the repository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// FindByID returns a cohort or sql.ErrNoRows.
func (r *CohortRepository) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	query := `SELECT ` + cohortColumns + ` FROM cohorts c WHERE c.id = $1`
	var cohort models.Cohort
	if err := r.db.GetContext(ctx, &cohort, query, id); err != nil {
		return nil, err
	}
	return &cohort, nil
}

// ListOpenWithOccupancy returns open cohorts with their enrollment count and
// the number of holds still active at now. An empty language lists all.
func (r *CohortRepository) ListOpenWithOccupancy(ctx context.Context, language string, now time.Time) ([]models.CohortOccupancy, error) {
	args := []interface{}{now, models.CohortStatusOpen}
	conditions := []string{"c.status = $2"}
	if language != "" {
		args = append(args, language)
		conditions = append(conditions, fmt.Sprintf("lower(c.language) = lower($%d)", len(args)))
	}

	query := `SELECT ` + cohortColumns + `,
	(SELECT COUNT(*) FROM enrollments e WHERE e.cohort_id = c.id) AS enrolled,
	(SELECT COUNT(*) FROM cohort_holds h WHERE h.cohort_id = c.id AND h.expires_at > $1) AS active_holds
FROM cohorts c
WHERE ` + strings.Join(conditions, " AND ") + `
ORDER BY c.start_date ASC NULLS LAST, c.label ASC`

	var rows []models.CohortOccupancy
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list open cohorts: %w", err)
	}
	return rows, nil
}
