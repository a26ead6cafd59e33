package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCohortRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCohortRepository(db)
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM cohorts c WHERE c.id = $1")).
		WithArgs("cohort-1").
		WillReturnRows(sqlmock.NewRows(cohortRowColumns).
			AddRow("cohort-1", "German B1", "German", "B1", start, "Tue", 8, "closed", nil, time.Now()))

	cohort, err := repo.FindByID(context.Background(), "cohort-1")
	require.NoError(t, err)
	assert.False(t, cohort.IsOpen())
	assert.Equal(t, "", cohort.Price())
	assert.Equal(t, "2026-09-01", cohort.StartDateString())
}

func TestCohortRepositoryListOpenWithOccupancy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCohortRepository(db)
	now := time.Now().UTC()

	columns := append(append([]string{}, cohortRowColumns...), "enrolled", "active_holds")
	mock.ExpectQuery(regexp.QuoteMeta("AND h.expires_at > $1")).
		WithArgs(now, "open", "Italian").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("cohort-1", "Italian A1", "Italian", "A1", nil, "Mon", 10, "open", "price_a", now, 4, 1))

	items, err := repo.ListOpenWithOccupancy(context.Background(), "Italian", now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Enrolled)
	assert.Equal(t, 1, items[0].ActiveHolds)
	assert.Equal(t, "price_a", items[0].Price())
}
