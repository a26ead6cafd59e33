package models

import "time"

// Hold is a short-lived seat reservation for an in-progress checkout.
type Hold struct {
	ID        string    `db:"id" json:"id"`
	CohortID  string    `db:"cohort_id" json:"cohort_id"`
	Email     *string   `db:"email" json:"email,omitempty"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	SessionID *string   `db:"session_id" json:"session_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the hold still counts against capacity at t.
func (h Hold) ActiveAt(t time.Time) bool {
	return h.ExpiresAt.After(t)
}
