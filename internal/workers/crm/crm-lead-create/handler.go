// internal/workers/crm/crm-lead-create/handler.go
package crmleadcreate

import (
	"context"
	"fmt"
	"strings"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/zoho"
)

const TaskType = "crm-lead-create"

// LeadCreator is satisfied by *zoho.CRMClient.
type LeadCreator interface {
	CreateLead(ctx context.Context, lead *zoho.Lead) (string, error)
}

type Handler struct {
	config *Config
	crm    LeadCreator
	logger logger.Logger
}

func NewHandler(cfg *Config, crm LeadCreator, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Enabled && crm == nil {
		return nil, fmt.Errorf("crm client is required when lead creation is enabled")
	}
	return &Handler{
		config: cfg,
		crm:    crm,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Execute records the enquiry as a CRM lead. It has its own timeout so a
// slow CRM cannot hold up the webhook response for long.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if !h.config.Enabled {
		return &Output{Skipped: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	lead := buildLead(input, h.config.LeadSource)
	id, err := h.crm.CreateLead(ctx, lead)
	if err != nil {
		h.logger.Warn("crm lead creation failed", map[string]interface{}{
			"enquiryId": input.EnquiryID,
			"error":     err.Error(),
		})
		return nil, apperrors.NewCRMLeadCreateFailedError(err)
	}

	h.logger.Info("crm lead created", map[string]interface{}{
		"enquiryId": input.EnquiryID,
		"leadId":    id,
	})
	return &Output{LeadID: id}, nil
}

func buildLead(in *Input, sourceOverride string) *zoho.Lead {
	source := in.Platform
	if sourceOverride != "" {
		source = sourceOverride
	}

	delivery := in.DeliveredVia
	if delivery == "" {
		delivery = "not delivered"
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "Enquiry %s via %s\n", in.EnquiryID, in.Platform)
	fmt.Fprintf(&desc, "Question: %s\n", in.Query)
	fmt.Fprintf(&desc, "Reply: %s", delivery)

	return &zoho.Lead{
		LastName:    "Enquiry " + in.Platform,
		Phone:       in.Recipient.String(),
		LeadSource:  source,
		Description: desc.String(),
	}
}
