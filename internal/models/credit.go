package models

import (
	"fmt"
	"time"
)

// CreditEntry is one row of the append-only lesson credit ledger.
type CreditEntry struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	DeltaCredits int       `db:"delta_credits" json:"delta_credits"`
	Source       string    `db:"source" json:"source"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PurchaseCreditSource is the ledger source granting credits for a session.
func PurchaseCreditSource(sessionID string) string {
	return fmt.Sprintf("purchase:%s", sessionID)
}

// ManualCreditSource is the ledger source for an admin adjustment.
func ManualCreditSource(adminEmail string) string {
	return fmt.Sprintf("manual:%s", adminEmail)
}

// BookingCreditSource is the ledger source for a lesson booking.
func BookingCreditSource(bookingID string) string {
	return fmt.Sprintf("booking:%s", bookingID)
}
