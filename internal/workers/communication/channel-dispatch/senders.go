// internal/workers/communication/channel-dispatch/senders.go
package channeldispatch

import (
	"context"

	"estate-assistant/internal/common/aws"
	"estate-assistant/internal/common/twilio"
	"estate-assistant/internal/models"
)

// TwilioAPI is satisfied by *twilio.Client.
type TwilioAPI interface {
	SendSMS(ctx context.Context, to, body string) (*twilio.Message, error)
	SendWhatsApp(ctx context.Context, to, body string) (*twilio.Message, error)
}

// SNSAPI is satisfied by *aws.SNSClient.
type SNSAPI interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type TwilioWhatsAppSender struct {
	client TwilioAPI
}

func NewTwilioWhatsAppSender(client TwilioAPI) *TwilioWhatsAppSender {
	return &TwilioWhatsAppSender{client: client}
}

func (s *TwilioWhatsAppSender) Channel() models.Channel { return models.ChannelWhatsApp }

func (s *TwilioWhatsAppSender) Send(ctx context.Context, to models.PhoneNumber, body string) SendResult {
	msg, err := s.client.SendWhatsApp(ctx, to.String(), body)
	return twilioResult(msg, err)
}

type TwilioSMSSender struct {
	client TwilioAPI
}

func NewTwilioSMSSender(client TwilioAPI) *TwilioSMSSender {
	return &TwilioSMSSender{client: client}
}

func (s *TwilioSMSSender) Channel() models.Channel { return models.ChannelSMS }

func (s *TwilioSMSSender) Send(ctx context.Context, to models.PhoneNumber, body string) SendResult {
	msg, err := s.client.SendSMS(ctx, to.String(), body)
	return twilioResult(msg, err)
}

func twilioResult(msg *twilio.Message, err error) SendResult {
	switch {
	case err == nil && msg != nil:
		return SendResult{Status: StatusDelivered, MessageID: msg.SID}
	case err == nil:
		return SendResult{Status: StatusDelivered}
	case twilio.IsInvalidRecipient(err):
		return SendResult{Status: StatusRecipientRejected, Err: err}
	default:
		return SendResult{Status: StatusUnavailable, Err: err}
	}
}

// SNSSMSSender sends SMS through AWS SNS direct publish.
type SNSSMSSender struct {
	client SNSAPI
}

func NewSNSSMSSender(client SNSAPI) *SNSSMSSender {
	return &SNSSMSSender{client: client}
}

func (s *SNSSMSSender) Channel() models.Channel { return models.ChannelSMS }

func (s *SNSSMSSender) Send(ctx context.Context, to models.PhoneNumber, body string) SendResult {
	id, err := s.client.SendSMS(ctx, to.String(), body)
	switch {
	case err == nil:
		return SendResult{Status: StatusDelivered, MessageID: id}
	case aws.IsInvalidPhoneNumber(err):
		return SendResult{Status: StatusRecipientRejected, Err: err}
	default:
		return SendResult{Status: StatusUnavailable, Err: err}
	}
}
