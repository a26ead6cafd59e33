package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PurchaseStatusCompleted marks a settled checkout.
const PurchaseStatusCompleted = "completed"

// Purchase is the log entry of a settled checkout session.
type Purchase struct {
	ID          string         `db:"id" json:"id"`
	SessionID   string         `db:"session_id" json:"session_id"`
	Email       string         `db:"email" json:"email"`
	PriceID     string         `db:"price_id" json:"price_id"`
	AmountTotal int64          `db:"amount_total" json:"amount_total"`
	Currency    string         `db:"currency" json:"currency"`
	Status      string         `db:"status" json:"status"`
	Lang        string         `db:"lang" json:"lang"`
	Metadata    types.JSONText `db:"metadata" json:"metadata"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// PurchaseFilter narrows purchase listings.
type PurchaseFilter struct {
	Email    string
	Page     int
	PageSize int
}
