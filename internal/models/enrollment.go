package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusConfirmed EnrollmentStatus = "confirmed"
	EnrollmentStatusMoved     EnrollmentStatus = "moved"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// EnrollmentSource records how an enrollment was created.
type EnrollmentSource string

// Possible enrollment sources.
const (
	EnrollmentSourceAdmin  EnrollmentSource = "admin"
	EnrollmentSourceImport EnrollmentSource = "import"
	EnrollmentSourceStripe EnrollmentSource = "stripe"
)

// Enrollment is a learner's seat in a cohort.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	Email     string           `db:"email" json:"email"`
	CohortID  string           `db:"cohort_id" json:"cohort_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	Source    EnrollmentSource `db:"source" json:"source"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with cohort info.
type EnrollmentDetail struct {
	Enrollment
	CohortLabel string     `db:"cohort_label" json:"cohort_label"`
	Language    string     `db:"language" json:"language"`
	Level       string     `db:"level" json:"level"`
	StartDate   *time.Time `db:"start_date" json:"start_date,omitempty"`
	Schedule    string     `db:"schedule" json:"schedule"`
}
