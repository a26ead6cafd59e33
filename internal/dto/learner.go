package dto

// CreditBalanceResponse reports a learner's lesson credits.
type CreditBalanceResponse struct {
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

// BookLessonRequest spends one credit on a lesson slot.
type BookLessonRequest struct {
	When  string `json:"when" validate:"required,max=64"`
	Notes string `json:"notes" validate:"omitempty,max=500"`
}

// BookLessonResponse confirms a booking.
type BookLessonResponse struct {
	BookingID        string `json:"booking_id"`
	When             string `json:"when"`
	RemainingCredits int    `json:"remaining_credits"`
}
