// internal/workers/application/process-enquiry/handler.go
package processenquiry

import (
	"context"
	"fmt"
	"time"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/metrics"
	"estate-assistant/internal/common/observability"
	"estate-assistant/internal/models"
	composereply "estate-assistant/internal/workers/ai-conversation/compose-reply"
	crmleadcreate "estate-assistant/internal/workers/crm/crm-lead-create"
	staffalert "estate-assistant/internal/workers/communication/staff-alert"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "process-enquiry"

// Dependencies wires the steps. Leads and Alerts are optional.
type Dependencies struct {
	Parser        Parser
	Composer      Composer
	Dispatcher    Dispatcher
	Leads         LeadRecorder
	Alerts        Alerter
	KnowledgeBase *models.KnowledgeBase
	Metrics       *observability.Metrics
}

type Handler struct {
	config *Config
	deps   Dependencies
	logger logger.Logger
}

func NewHandler(cfg *Config, deps Dependencies, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Parser == nil || deps.Composer == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("parser, composer and dispatcher are required")
	}
	if deps.KnowledgeBase == nil {
		deps.KnowledgeBase = models.NewKnowledgeBase(nil)
	}
	return &Handler{
		config: cfg,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Execute handles one webhook body end to end: parse, compose, dispatch,
// then the best-effort CRM lead and staff alert. The returned Output is nil
// only when the body could not be parsed.
func (h *Handler) Execute(ctx context.Context, raw []byte) (out *Output, err error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "process-enquiry")
	defer span.End()

	defer func() {
		label := outcomeLabel(out, err)
		if err != nil {
			se := apperrors.Normalize(err)
			metrics.EnquiriesFailed.WithLabelValues(string(se.Code)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, string(se.Code))
		}
		h.deps.Metrics.RecordEnquiry(ctx, label, time.Since(start))
	}()

	enquiry, err := h.deps.Parser.Parse(raw)
	if err != nil {
		h.logger.Warn("rejected enquiry", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	log := h.logger.With(map[string]interface{}{
		"enquiryId": enquiry.ID,
		"platform":  enquiry.Platform,
		"channel":   string(enquiry.Channel),
	})
	ctx = logger.IntoContext(ctx, log)
	span.SetAttributes(
		attribute.String("enquiry.id", enquiry.ID),
		attribute.String("enquiry.platform", enquiry.Platform),
		attribute.String("enquiry.channel", string(enquiry.Channel)),
	)
	metrics.EnquiriesReceived.WithLabelValues(enquiry.Platform, string(enquiry.Channel)).Inc()
	log.Info("enquiry received", map[string]interface{}{"recipient": enquiry.Recipient.Masked()})

	out = &Output{EnquiryID: enquiry.ID, Platform: enquiry.Platform, Channel: enquiry.Channel}

	// Composition outlives the caller. The composer's own timeout bounds it.
	reply, err := h.deps.Composer.Execute(context.WithoutCancel(ctx), &composereply.Input{
		EnquiryID:     enquiry.ID,
		Query:         enquiry.Query,
		KnowledgeBase: h.deps.KnowledgeBase,
	})
	if err != nil {
		return out, err
	}
	out.ReplySource = reply.Source

	out.Outcome = h.deps.Dispatcher.Dispatch(ctx, enquiry.Recipient, reply.Text, enquiry.Channel)
	h.followUp(ctx, log, enquiry, out.Outcome)

	if !out.Outcome.Succeeded {
		return out, deliveryError(out.Outcome)
	}

	log.Info("enquiry answered", map[string]interface{}{
		"deliveredVia": string(*out.Outcome.DeliveredVia),
		"fallback":     out.Outcome.UsedFallback(),
		"replySource":  string(reply.Source),
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return out, nil
}

// followUp runs the CRM lead and staff alert steps. They never change the
// result and survive the caller going away.
func (h *Handler) followUp(ctx context.Context, log logger.Logger, e *models.Enquiry, outcome models.DeliveryOutcome) {
	if h.deps.Leads == nil && h.deps.Alerts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.FollowUpTimeout)
	defer cancel()

	if h.deps.Leads != nil {
		var via string
		if outcome.DeliveredVia != nil {
			via = string(*outcome.DeliveredVia)
		}
		if _, err := h.deps.Leads.Execute(ctx, &crmleadcreate.Input{
			EnquiryID:    e.ID,
			Platform:     e.Platform,
			Recipient:    e.Recipient,
			Query:        e.Query,
			DeliveredVia: via,
		}); err != nil {
			log.Debug("crm lead skipped after error", map[string]interface{}{"error": err.Error()})
		}
	}

	if h.deps.Alerts != nil && !outcome.Succeeded {
		if _, err := h.deps.Alerts.Execute(ctx, &staffalert.Input{
			EnquiryID: e.ID,
			Platform:  e.Platform,
			Recipient: e.Recipient,
			Query:     e.Query,
			Outcome:   outcome,
		}); err != nil {
			log.Debug("staff alert skipped after error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// deliveryError reports an undelivered outcome. A rejected number or bad body
// keeps its own code; provider failures become DELIVERY_FAILED.
func deliveryError(o models.DeliveryOutcome) error {
	if o.Error == nil {
		return apperrors.NewDeliveryFailedError(nil)
	}
	switch o.Error.Code {
	case apperrors.ErrCodeInvalidRecipient, apperrors.ErrCodeInvalidMessageBody:
		return o.Error
	default:
		return apperrors.NewDeliveryFailedError(o.Error).WithMetadata("attempts", o.Attempts)
	}
}

func outcomeLabel(out *Output, err error) string {
	if err != nil {
		return string(apperrors.Normalize(err).Code)
	}
	if out != nil && out.Outcome.UsedFallback() {
		return "fallback"
	}
	return "delivered"
}
