package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreAnnotated(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 5)

	for _, name := range files {
		body, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestHoldTableIndexesActiveLookup(t *testing.T) {
	body, err := fs.ReadFile(FS, "00003_create_cohort_holds.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "(cohort_id, expires_at)"))
}

func TestSettlementKeysAreUnique(t *testing.T) {
	body, err := fs.ReadFile(FS, "00005_unique_settlement_keys.sql")
	require.NoError(t, err)
	sql := string(body)
	assert.Contains(t, sql, "UNIQUE INDEX IF NOT EXISTS uq_enrollments_cohort_email ON enrollments (cohort_id, lower(email))")
	assert.Contains(t, sql, "ON credit_ledger (source)")
	assert.Contains(t, sql, "WHERE source LIKE 'purchase:%'")
}
