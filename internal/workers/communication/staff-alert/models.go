package staffalert

import "estate-assistant/internal/models"

type Input struct {
	EnquiryID string
	Platform  string
	Recipient models.PhoneNumber
	Query     string
	Outcome   models.DeliveryOutcome
}

type Output struct {
	MessageID string `json:"messageId,omitempty"`
	Skipped   bool   `json:"skipped"`
}
