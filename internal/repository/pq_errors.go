package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrUnknownCohort is returned when a write references a cohort that does not exist.
var ErrUnknownCohort = errors.New("unknown cohort")

const (
	pqInvalidTextRepresentation = "22P02"
	pqForeignKeyViolation       = "23503"
)

func pqCode(err error) string {
	var perr *pq.Error
	if errors.As(err, &perr) {
		return string(perr.Code)
	}
	return ""
}
