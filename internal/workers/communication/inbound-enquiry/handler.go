// internal/workers/communication/inbound-enquiry/handler.go
package inboundenquiry

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/validation"
	"estate-assistant/internal/models"

	"github.com/google/uuid"
)

const TaskType = "inbound-enquiry"

var schema = validation.MustCompile(payloadSchema)

type Handler struct {
	config *Config
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func NewHandler(cfg *Config, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// Parse turns a raw webhook body into an Enquiry. Shape problems are
// MALFORMED_REQUEST, an unusable phone number is INVALID_RECIPIENT. No I/O.
func (h *Handler) Parse(raw []byte) (*models.Enquiry, error) {
	result := schema.Validate(raw)
	if !result.Valid {
		return nil, apperrors.NewMalformedRequestError(result.Summary()).
			WithMetadata("fields", result.Errors)
	}

	var payload models.InboundPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperrors.NewMalformedRequestError(err.Error())
	}

	recipient, err := models.NewPhoneNumber(payload.UserPhoneNumber)
	if err != nil {
		return nil, err
	}

	platform := strings.ToLower(strings.TrimSpace(payload.Platform))
	channel, known := h.ChannelFor(platform)
	if !known {
		h.logger.Warn("unmapped platform, using default channel", map[string]interface{}{
			"platform": platform,
			"channel":  channel.String(),
		})
	}

	return &models.Enquiry{
		ID:         h.newID(),
		Platform:   platform,
		Channel:    channel,
		Query:      strings.TrimSpace(payload.UserQuery),
		Recipient:  recipient,
		ReceivedAt: h.now(),
	}, nil
}

// ChannelFor resolves a platform to its preferred channel. known is false
// when the default channel was used.
func (h *Handler) ChannelFor(platform string) (channel models.Channel, known bool) {
	if c, ok := h.config.PlatformChannels[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return c, true
	}
	return h.config.DefaultChannel, false
}
