package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWritesHeaderAndRows(t *testing.T) {
	table := Table{Columns: []string{"email", "amount"}}
	table.AddRow("ana@example.com", "EUR 120.00")
	table.AddRow("only-email@example.com")

	out, err := CSV(table)
	require.NoError(t, err)
	assert.Equal(t, "email,amount\nana@example.com,EUR 120.00\nonly-email@example.com,\n", string(out))
}

func TestCSVRequiresColumns(t *testing.T) {
	_, err := CSV(Table{})
	require.Error(t, err)
}

func TestPDFRendersDocument(t *testing.T) {
	table := Table{Title: "Purchases", Columns: []string{"email", "amount"}}
	table.AddRow("ana@example.com", "EUR 120.00")

	out, err := PDF(table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestReceiptPDF(t *testing.T) {
	out, err := ReceiptPDF(Receipt{
		Business:    "Lingua By",
		Reference:   "cs_test_1",
		Email:       "ana@example.com",
		Description: "Italian A1 cohort",
		AmountMinor: 12000,
		Currency:    "eur",
		Credits:     8,
		PaidAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = ReceiptPDF(Receipt{})
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "EUR 12.50", FormatAmount(1250, "eur"))
	assert.Equal(t, "USD 0.05", FormatAmount(5, "usd"))
	assert.Equal(t, "EUR -3.00", FormatAmount(-300, "eur"))
}
