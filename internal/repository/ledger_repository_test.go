package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-api/internal/models"
)

func TestEnrollmentRepositoryCreateIfAbsent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	now := time.Now().UTC()
	enrollment := &models.Enrollment{ID: "enr-1", Email: "ana@example.com", CohortID: "cohort-1", Status: models.EnrollmentStatusConfirmed, Source: models.EnrollmentSourceStripe, CreatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs("enr-1", "ana@example.com", "cohort-1", models.EnrollmentStatusConfirmed, models.EnrollmentSourceStripe, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateIfAbsent(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec(regexp.QuoteMeta("WHERE NOT EXISTS")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.CreateIfAbsent(context.Background(), enrollment)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnrollmentRepositoryCreateIfAbsentUnknownCohort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	enrollment := &models.Enrollment{ID: "enr-2", Email: "ana@example.com", CohortID: "0b6a1f7e-3c1d-4e59-9a57-2f0c5e7d8a10", Status: models.EnrollmentStatusConfirmed, Source: models.EnrollmentSourceStripe, CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT DO NOTHING")).
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})

	created, err := repo.CreateIfAbsent(context.Background(), enrollment)
	require.ErrorIs(t, err, ErrUnknownCohort)
	assert.False(t, created)
}

func TestCreditRepositoryGrantOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCreditRepository(db)
	entry := &models.CreditEntry{ID: "led-1", Email: "ana@example.com", DeltaCredits: 8, Source: "purchase:cs_1", CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("WHERE NOT EXISTS (SELECT 1 FROM credit_ledger WHERE source = $4)")).
		WithArgs("led-1", "ana@example.com", 8, "purchase:cs_1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	granted, err := repo.GrantOnce(context.Background(), entry)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestCreditRepositorySpend(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCreditRepository(db)
	entry := &models.CreditEntry{ID: "led-2", Email: "ana@example.com", DeltaCredits: -1, Source: "booking:b1", CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WithArgs("ana@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(delta_credits), 0)")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_ledger")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	remaining, err := repo.Spend(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestCreditRepositorySpendInsufficient(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCreditRepository(db)
	entry := &models.CreditEntry{ID: "led-3", Email: "ana@example.com", DeltaCredits: -1, Source: "booking:b2", CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(delta_credits), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	mock.ExpectRollback()

	_, err := repo.Spend(context.Background(), entry)
	require.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestPurchaseRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPurchaseRepository(db)
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	purchase := &models.Purchase{
		ID:          "new-id",
		SessionID:   "cs_1",
		Email:       "ana@example.com",
		PriceID:     "price_a",
		AmountTotal: 12000,
		Currency:    "eur",
		Status:      models.PurchaseStatusCompleted,
		Lang:        "Italian",
		Metadata:    types.JSONText(`{"cohort_id":"c1"}`),
		CreatedAt:   time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (session_id) DO UPDATE SET")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "inserted"}).AddRow("existing-id", created, false))

	inserted, err := repo.Upsert(context.Background(), purchase)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "existing-id", purchase.ID)
	assert.Equal(t, created, purchase.CreatedAt)
}

func TestPurchaseRepositoryListFiltersByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPurchaseRepository(db)

	columns := []string{"id", "session_id", "email", "price_id", "amount_total", "currency", "status", "lang", "metadata", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE lower(email) = lower($1) ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("p1", "cs_1", "ana@example.com", "price_a", 12000, "eur", "completed", "Italian", []byte(`{}`), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM purchases WHERE lower(email) = lower($1)")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.PurchaseFilter{Email: "ana@example.com"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, int64(12000), items[0].AmountTotal)
}
