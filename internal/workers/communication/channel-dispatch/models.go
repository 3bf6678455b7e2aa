// internal/workers/communication/channel-dispatch/models.go
package channeldispatch

import (
	"context"

	"estate-assistant/internal/models"
)

// SendStatus classifies a single send attempt.
type SendStatus int

const (
	StatusDelivered SendStatus = iota
	// StatusUnavailable covers network errors, timeouts and provider failures.
	// It is the only status that allows a fallback.
	StatusUnavailable
	// StatusRecipientRejected means the provider refused the number itself.
	StatusRecipientRejected
)

func (s SendStatus) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusUnavailable:
		return "unavailable"
	case StatusRecipientRejected:
		return "recipient_rejected"
	default:
		return "unknown"
	}
}

type SendResult struct {
	Status    SendStatus
	MessageID string
	Err       error
}

// Sender delivers one text message on one channel. Implementations must not
// retry internally and must report every failure through SendResult.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, to models.PhoneNumber, body string) SendResult
}

// SenderFunc adapts a function into a Sender for a fixed channel.
type SenderFunc struct {
	On models.Channel
	Fn func(ctx context.Context, to models.PhoneNumber, body string) SendResult
}

func (f SenderFunc) Channel() models.Channel { return f.On }

func (f SenderFunc) Send(ctx context.Context, to models.PhoneNumber, body string) SendResult {
	return f.Fn(ctx, to, body)
}
