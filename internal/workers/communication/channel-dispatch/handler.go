// internal/workers/communication/channel-dispatch/handler.go
package channeldispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/metrics"
	"estate-assistant/internal/common/observability"
	"estate-assistant/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TaskType = "channel-dispatch"

// Handler sends a reply on the preferred channel and, when WhatsApp is
// unavailable, exactly once more on SMS. It never sends more than twice.
type Handler struct {
	config   *Config
	whatsapp Sender
	sms      Sender
	logger   logger.Logger
}

func NewHandler(cfg *Config, whatsapp, sms Sender, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if whatsapp == nil || sms == nil {
		return nil, fmt.Errorf("both whatsapp and sms senders are required")
	}
	if whatsapp.Channel() != models.ChannelWhatsApp {
		return nil, fmt.Errorf("whatsapp sender reports channel %q", whatsapp.Channel())
	}
	if sms.Channel() != models.ChannelSMS {
		return nil, fmt.Errorf("sms sender reports channel %q", sms.Channel())
	}
	return &Handler{
		config:   cfg,
		whatsapp: whatsapp,
		sms:      sms,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Dispatch delivers body to recipient. Sends are detached from ctx
// cancellation so a dropped inbound connection does not abort a delivery
// that is already under way; each attempt has its own timeout instead.
func (h *Handler) Dispatch(ctx context.Context, recipient models.PhoneNumber, body string, preferred models.Channel) models.DeliveryOutcome {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues("dispatch").Observe(time.Since(start).Seconds())
	}()

	ctx, span := observability.Tracer().Start(ctx, "channel-dispatch",
		trace.WithAttributes(attribute.String("channel.preferred", string(preferred))))
	defer span.End()

	log := logger.FromContext(ctx, h.logger)

	if !preferred.Valid() {
		log.Warn("unknown preferred channel, using sms", map[string]interface{}{"channel": string(preferred)})
		preferred = models.ChannelSMS
	}
	outcome := models.DeliveryOutcome{AttemptedChannel: preferred}

	if strings.TrimSpace(body) == "" {
		outcome.Error = apperrors.NewInvalidMessageBodyError()
		span.SetStatus(codes.Error, string(outcome.Error.Code))
		return outcome
	}
	if recipient.IsZero() {
		outcome.Error = apperrors.NewInvalidRecipientError("recipient is empty")
		span.SetStatus(codes.Error, string(outcome.Error.Code))
		return outcome
	}

	to := recipient
	if !h.config.TestRecipient.IsZero() {
		log.Info("redirecting delivery to test recipient", map[string]interface{}{
			"recipient":     recipient.Masked(),
			"testRecipient": h.config.TestRecipient.Masked(),
		})
		to = h.config.TestRecipient
	}

	res := h.attempt(ctx, log, h.senderFor(preferred), to, body)
	outcome.Attempts = 1
	if res.Status == StatusDelivered {
		return h.delivered(span, outcome, preferred, res)
	}
	if res.Status == StatusRecipientRejected {
		return h.rejected(span, outcome, res)
	}
	if preferred != models.ChannelWhatsApp {
		return h.failed(span, outcome, preferred, res)
	}

	log.Warn("whatsapp unavailable, falling back to sms", map[string]interface{}{"error": errString(res.Err)})
	metrics.DeliveryFallbacks.WithLabelValues(string(models.ChannelWhatsApp), string(models.ChannelSMS)).Inc()
	span.AddEvent("fallback", trace.WithAttributes(attribute.String("channel.fallback", string(models.ChannelSMS))))
	outcome.FellBackTo = models.ChannelPtr(models.ChannelSMS)

	res = h.attempt(ctx, log, h.sms, to, body)
	outcome.Attempts = 2
	switch res.Status {
	case StatusDelivered:
		return h.delivered(span, outcome, models.ChannelSMS, res)
	case StatusRecipientRejected:
		return h.rejected(span, outcome, res)
	default:
		return h.failed(span, outcome, models.ChannelSMS, res)
	}
}

func (h *Handler) senderFor(c models.Channel) Sender {
	if c == models.ChannelWhatsApp {
		return h.whatsapp
	}
	return h.sms
}

func (h *Handler) delivered(span trace.Span, o models.DeliveryOutcome, via models.Channel, res SendResult) models.DeliveryOutcome {
	o.Succeeded = true
	o.DeliveredVia = models.ChannelPtr(via)
	o.MessageID = res.MessageID
	span.SetAttributes(
		attribute.String("channel.delivered_via", string(via)),
		attribute.Int("delivery.attempts", o.Attempts),
	)
	return o
}

func (h *Handler) rejected(span trace.Span, o models.DeliveryOutcome, res SendResult) models.DeliveryOutcome {
	o.Error = apperrors.NewInvalidRecipientError(errString(res.Err))
	span.SetStatus(codes.Error, string(o.Error.Code))
	return o
}

func (h *Handler) failed(span trace.Span, o models.DeliveryOutcome, on models.Channel, res SendResult) models.DeliveryOutcome {
	o.Error = apperrors.NewChannelUnavailableError(string(on), res.Err)
	span.SetStatus(codes.Error, string(o.Error.Code))
	return o
}

func (h *Handler) attempt(ctx context.Context, log logger.Logger, s Sender, to models.PhoneNumber, body string) SendResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.AttemptTimeout)
	defer cancel()

	channel := string(s.Channel())
	ctx, span := observability.Tracer().Start(ctx, "send "+channel)
	defer span.End()

	start := time.Now()
	res := safeSend(ctx, s, to, body)
	if res.Status != StatusDelivered && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res = SendResult{Status: StatusUnavailable, Err: fmt.Errorf("%s send timed out after %s", channel, h.config.AttemptTimeout)}
	}
	if res.Status != StatusDelivered && res.Err == nil {
		res.Err = fmt.Errorf("%s send failed", channel)
	}

	metrics.DeliveryAttempts.WithLabelValues(channel, res.Status.String()).Inc()
	span.SetAttributes(attribute.String("send.result", res.Status.String()))

	fields := map[string]interface{}{
		"channel":    channel,
		"recipient":  to.Masked(),
		"result":     res.Status.String(),
		"durationMs": time.Since(start).Milliseconds(),
	}
	if res.Status == StatusDelivered {
		fields["messageId"] = res.MessageID
		log.Info("message delivered", fields)
	} else {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Status.String())
		fields["error"] = res.Err.Error()
		log.Warn("message not delivered", fields)
	}
	return res
}

// safeSend turns a panicking sender into an unavailable result.
func safeSend(ctx context.Context, s Sender, to models.PhoneNumber, body string) (res SendResult) {
	defer func() {
		if r := recover(); r != nil {
			res = SendResult{Status: StatusUnavailable, Err: fmt.Errorf("sender panic: %v", r)}
		}
	}()
	return s.Send(ctx, to, body)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
