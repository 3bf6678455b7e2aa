package crmleadcreate

import "estate-assistant/internal/models"

type Input struct {
	EnquiryID string
	Platform  string
	Recipient models.PhoneNumber
	Query     string
	// DeliveredVia is empty when the reply was not delivered.
	DeliveredVia string
}

type Output struct {
	LeadID  string `json:"leadId,omitempty"`
	Skipped bool   `json:"skipped"`
}
