package dto

// AdjustCreditsRequest adds or removes credits for a learner.
type AdjustCreditsRequest struct {
	Email string `json:"email" validate:"required,email"`
	Delta int    `json:"delta" validate:"required,ne=0,min=-1000,max=1000"`
	Notes string `json:"notes" validate:"omitempty,max=500"`
}

// AdjustCreditsResponse echoes the ledger entry and the new balance.
type AdjustCreditsResponse struct {
	EntryID string `json:"entry_id"`
	Email   string `json:"email"`
	Delta   int    `json:"delta"`
	Balance int    `json:"balance"`
}

// PurgeHoldsResponse reports how many expired holds were removed.
type PurgeHoldsResponse struct {
	Deleted int64 `json:"deleted"`
}

// ExportFormat selects the purchase report encoding.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered report.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
