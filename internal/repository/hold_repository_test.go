package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-api/internal/models"
)

var cohortRowColumns = []string{"id", "label", "language", "level", "start_date", "schedule", "capacity", "status", "price_id", "created_at"}

func expectCohortLock(mock sqlmock.Sqlmock, capacity int, status string) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM cohorts WHERE id = $1 FOR UPDATE")).
		WithArgs("cohort-1").
		WillReturnRows(sqlmock.NewRows(cohortRowColumns).
			AddRow("cohort-1", "Italian A1", "Italian", "A1", nil, "Mon 18:00", capacity, status, "price_a", time.Now()))
}

func TestHoldRepositoryReserveInsertsHold(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectCohortLock(mock, 10, "open")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE cohort_id = $1")).
		WithArgs("cohort-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cohort_holds WHERE cohort_id = $1 AND expires_at > $2")).
		WithArgs("cohort-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cohort_holds")).
		WithArgs(sqlmock.AnyArg(), "cohort-1", nil, now.Add(15*time.Minute), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var seen models.CohortOccupancy
	hold, occ, err := repo.Reserve(context.Background(), ReserveParams{CohortID: "cohort-1", Now: now, TTL: 15 * time.Minute}, func(o models.CohortOccupancy) error {
		seen = o
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.NotEmpty(t, hold.ID)
	assert.Equal(t, now.Add(15*time.Minute), hold.ExpiresAt)
	assert.Equal(t, 7, seen.Enrolled)
	assert.Equal(t, 2, seen.ActiveHolds)
	assert.Equal(t, 10, occ.Capacity)
	assert.Equal(t, "price_a", occ.Price())
}

func TestHoldRepositoryReserveRejectedRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)
	now := time.Now().UTC()
	full := errors.New("full")

	mock.ExpectBegin()
	expectCohortLock(mock, 1, "open")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cohort_holds")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	hold, occ, err := repo.Reserve(context.Background(), ReserveParams{CohortID: "cohort-1", Now: now, TTL: time.Minute}, func(models.CohortOccupancy) error {
		return full
	})
	require.ErrorIs(t, err, full)
	assert.Nil(t, hold)
	require.NotNil(t, occ)
	assert.Equal(t, 1, occ.Enrolled)
}

func TestHoldRepositoryReserveMissingCohort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("cohort-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.Reserve(context.Background(), ReserveParams{CohortID: "cohort-1", Now: time.Now(), TTL: time.Minute}, func(models.CohortOccupancy) error {
		t.Fatal("admit must not run without a cohort")
		return nil
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestHoldRepositoryAttachSession(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cohort_holds SET session_id = $1 WHERE id = $2")).
		WithArgs("cs_1", "hold-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AttachSession(context.Background(), "hold-1", "cs_1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cohort_holds")).
		WithArgs("cs_1", "hold-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.Error(t, repo.AttachSession(context.Background(), "hold-2", "cs_1"))
}

func TestHoldRepositoryDeletes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cohort_holds WHERE session_id = $1")).
		WithArgs("cs_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cohort_holds WHERE id = $1")).
		WithArgs("hold-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cohort_holds WHERE expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteBySession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteByID(context.Background(), "hold-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = repo.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestHoldRepositoryReserveUnparseableCohortID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewHoldRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})
	mock.ExpectRollback()

	_, _, err := repo.Reserve(context.Background(), ReserveParams{CohortID: "not-a-uuid", Now: time.Now(), TTL: time.Minute}, func(models.CohortOccupancy) error {
		t.Fatal("admit must not run without a cohort")
		return nil
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
}
