package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt is the content of a payment receipt document.
type Receipt struct {
	Business    string
	Reference   string
	Email       string
	Description string
	AmountMinor int64
	Currency    string
	Credits     int
	PaidAt      time.Time
}

// FormatAmount renders minor units as "EUR 12.50".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", strings.ToUpper(currency), sign, minor/100, minor%100)
}

// ReceiptPDF renders a single-page receipt.
func ReceiptPDF(r Receipt) ([]byte, error) {
	if r.Reference == "" {
		return nil, fmt.Errorf("receipt requires a reference")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, tr(r.Business), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Payment receipt", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, tr(value), "", 1, "L", false, 0, "")
	}
	line("Reference", r.Reference)
	if !r.PaidAt.IsZero() {
		line("Date", r.PaidAt.UTC().Format("2 Jan 2006 15:04 MST"))
	}
	line("Billed to", r.Email)
	if r.Description != "" {
		line("Description", r.Description)
	}
	if r.Credits > 0 {
		line("Lesson credits", fmt.Sprintf("%d", r.Credits))
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(45, 10, "Total paid", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, FormatAmount(r.AmountMinor, r.Currency), "T", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
