// internal/models/enquiry.go
package models

import "time"

// Enquiry is one inbound question. It is built once by the inbound adapter
// and never modified afterwards.
type Enquiry struct {
	ID         string      `json:"id"`
	Platform   string      `json:"platform"`
	Channel    Channel     `json:"channel"`
	Query      string      `json:"query"`
	Recipient  PhoneNumber `json:"recipient"`
	ReceivedAt time.Time   `json:"receivedAt"`
}

// InboundPayload is the wire shape of POST /incoming-enquiry.
type InboundPayload struct {
	Platform        string `json:"platform"`
	UserQuery       string `json:"user_query"`
	UserPhoneNumber string `json:"user_phone_number"`
}
