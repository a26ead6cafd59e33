package service

import "github.com/noah-isme/lingua-api/internal/models"

// ComputeSeats derives availability. Left never goes negative, and a cohort is
// full once enrollments plus active holds reach capacity.
func ComputeSeats(capacity, enrolled, activeHolds int) models.SeatAvailability {
	if capacity < 0 {
		capacity = 0
	}
	left := capacity - enrolled - activeHolds
	if left < 0 {
		left = 0
	}
	return models.SeatAvailability{
		Capacity:    capacity,
		Enrolled:    enrolled,
		ActiveHolds: activeHolds,
		Left:        left,
		Full:        enrolled+activeHolds >= capacity,
	}
}
