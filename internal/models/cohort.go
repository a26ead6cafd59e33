package models

import "time"

// CohortStatus represents whether a cohort accepts new learners.
type CohortStatus string

// Possible cohort statuses.
const (
	CohortStatusOpen     CohortStatus = "open"
	CohortStatusClosed   CohortStatus = "closed"
	CohortStatusFinished CohortStatus = "finished"
)

// Supported checkout languages.
const (
	LanguageItalian = "Italian"
	LanguageGerman  = "German"
)

// Cohort is a scheduled group course with a fixed capacity.
type Cohort struct {
	ID        string       `db:"id" json:"id"`
	Label     string       `db:"label" json:"label"`
	Language  string       `db:"language" json:"language"`
	Level     string       `db:"level" json:"level"`
	StartDate *time.Time   `db:"start_date" json:"start_date,omitempty"`
	Schedule  string       `db:"schedule" json:"schedule"`
	Capacity  int          `db:"capacity" json:"capacity"`
	Status    CohortStatus `db:"status" json:"status"`
	PriceID   *string      `db:"price_id" json:"price_id,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// IsOpen reports whether the cohort accepts checkouts.
func (c Cohort) IsOpen() bool {
	return c.Status == CohortStatusOpen
}

// Price returns the configured price id or an empty string.
func (c Cohort) Price() string {
	if c.PriceID == nil {
		return ""
	}
	return *c.PriceID
}

// StartDateString formats the start date as YYYY-MM-DD, empty when unset.
func (c Cohort) StartDateString() string {
	if c.StartDate == nil {
		return ""
	}
	return c.StartDate.Format("2006-01-02")
}

// SeatAvailability is the derived occupancy of a cohort.
type SeatAvailability struct {
	Capacity    int  `json:"capacity"`
	Enrolled    int  `json:"enrolled"`
	ActiveHolds int  `json:"active_holds"`
	Left        int  `json:"left"`
	Full        bool `json:"full"`
}

// CohortOccupancy is a cohort row joined with its enrollment and active hold counts.
type CohortOccupancy struct {
	Cohort
	Enrolled    int `db:"enrolled"`
	ActiveHolds int `db:"active_holds"`
}
