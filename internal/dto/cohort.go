package dto

// CohortListing is an open cohort with its current seat availability.
type CohortListing struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Language    string `json:"language"`
	Level       string `json:"level"`
	StartDate   string `json:"start_date,omitempty"`
	Schedule    string `json:"schedule"`
	Capacity    int    `json:"capacity"`
	Enrolled    int    `json:"enrolled"`
	ActiveHolds int    `json:"active_holds"`
	SeatsLeft   int    `json:"seats_left"`
	Full        bool   `json:"full"`
	Purchasable bool   `json:"purchasable"`
}
