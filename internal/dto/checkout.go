package dto

// CheckoutSessionRequest starts a checkout for a cohort seat.
type CheckoutSessionRequest struct {
	CohortID string `json:"cohort_id" validate:"required"`
	Lang     string `json:"lang" validate:"required,oneof=Italian German"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// PriceCheckoutRequest starts a checkout for a bare price (lesson packs, free class).
type PriceCheckoutRequest struct {
	PriceID   string `json:"price_id" validate:"required"`
	Lang      string `json:"lang" validate:"omitempty,max=32"`
	Email     string `json:"email" validate:"omitempty,email"`
	Level     string `json:"level" validate:"omitempty,max=16"`
	StartDate string `json:"start_date"`
}

// CheckoutResponse carries the processor redirect URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// WebhookAck acknowledges a processed notification.
type WebhookAck struct {
	Received bool `json:"received"`
}
