// internal/workers/communication/staff-alert/handler.go
package staffalert

import (
	"context"
	"fmt"
	"strings"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
)

const TaskType = "staff-alert"

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	SendTextEmail(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

type Handler struct {
	config *Config
	email  EmailSender
	logger logger.Logger
}

func NewHandler(cfg *Config, email EmailSender, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Enabled && email == nil {
		return nil, fmt.Errorf("email sender is required when staff alerts are enabled")
	}
	return &Handler{
		config: cfg,
		email:  email,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Execute e-mails staff about an enquiry whose reply was not delivered.
// Successful deliveries are skipped.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !h.config.Enabled || input.Outcome.Succeeded {
		return &Output{Skipped: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	data := templateData(input)
	subject := renderTemplate(h.config.SubjectTemplate, data)
	body := renderTemplate(h.config.BodyTemplate, data)

	id, err := h.email.SendTextEmail(ctx, h.config.FromEmail, h.config.Recipients, subject, body)
	if err != nil {
		h.logger.Error("staff alert send failed", map[string]interface{}{
			"enquiryId": input.EnquiryID,
			"error":     err.Error(),
		})
		return nil, apperrors.NewAlertSendFailedError(err)
	}

	h.logger.Info("staff alert sent", map[string]interface{}{
		"enquiryId":  input.EnquiryID,
		"messageId":  id,
		"recipients": len(h.config.Recipients),
	})
	return &Output{MessageID: id}, nil
}

func templateData(in *Input) map[string]interface{} {
	data := map[string]interface{}{
		"enquiryId":        in.EnquiryID,
		"platform":         in.Platform,
		"recipient":        in.Recipient.String(),
		"query":            in.Query,
		"attemptedChannel": string(in.Outcome.AttemptedChannel),
		"attempts":         in.Outcome.Attempts,
	}
	if in.Outcome.Error != nil {
		data["errorCode"] = string(in.Outcome.Error.Code)
		data["errorDetails"] = in.Outcome.Error.Details
	}
	return data
}

// renderTemplate substitutes {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
