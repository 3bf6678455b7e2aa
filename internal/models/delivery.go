// internal/models/delivery.go
package models

import (
	apperrors "estate-assistant/internal/common/errors"
)

// DeliveryOutcome records what one dispatch call did. It is created once and
// returned by value.
type DeliveryOutcome struct {
	AttemptedChannel Channel                  `json:"attemptedChannel"`
	Succeeded        bool                     `json:"succeeded"`
	FellBackTo       *Channel                 `json:"fellBackTo,omitempty"`
	DeliveredVia     *Channel                 `json:"deliveredVia,omitempty"`
	MessageID        string                   `json:"messageId,omitempty"`
	Attempts         int                      `json:"attempts"`
	Error            *apperrors.StandardError `json:"error,omitempty"`
}

// UsedFallback reports whether the reply went out on the secondary channel.
func (o DeliveryOutcome) UsedFallback() bool {
	return o.Succeeded && o.FellBackTo != nil && o.DeliveredVia != nil && *o.DeliveredVia == *o.FellBackTo
}

// ChannelPtr returns a pointer to a copy of c.
func ChannelPtr(c Channel) *Channel {
	return &c
}
