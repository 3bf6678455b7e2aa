// internal/server/handler.go
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/metrics"
	"estate-assistant/internal/models"
	processenquiry "estate-assistant/internal/workers/application/process-enquiry"
)

// EnquiryProcessor is satisfied by *processenquiry.Handler.
type EnquiryProcessor interface {
	Execute(ctx context.Context, raw []byte) (*processenquiry.Output, error)
}

type EnquiryHandler struct {
	processor      EnquiryProcessor
	errHandler     *apperrors.ErrorHandler
	fallbackStatus int
	logger         logger.Logger
}

// NewEnquiryHandler builds the webhook handler. fallbackStatus is the HTTP
// status used when the reply went out on SMS after WhatsApp failed.
func NewEnquiryHandler(processor EnquiryProcessor, fallbackStatus int, log logger.Logger) *EnquiryHandler {
	if fallbackStatus == 0 {
		fallbackStatus = http.StatusOK
	}
	return &EnquiryHandler{
		processor:      processor,
		errHandler:     apperrors.NewErrorHandler(log),
		fallbackStatus: fallbackStatus,
		logger:         log,
	}
}

func (h *EnquiryHandler) HandleIncomingEnquiry(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsInFlight.Inc()
	defer metrics.RequestsInFlight.Dec()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = apperrors.NewMalformedRequestError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		} else {
			err = apperrors.NewMalformedRequestError("could not read request body")
		}
		h.errHandler.WriteHTTPError(w, r, "", err)
		return
	}

	out, err := h.processor.Execute(r.Context(), raw)
	if err != nil {
		var enquiryID string
		if out != nil {
			enquiryID = out.EnquiryID
		}
		h.errHandler.WriteHTTPError(w, r, enquiryID, err)
		return
	}

	resp := EnquiryResponse{
		Status:      "success",
		Message:     messageDelivered,
		EnquiryID:   out.EnquiryID,
		ReplySource: string(out.ReplySource),
	}
	if out.Outcome.DeliveredVia != nil {
		resp.DeliveryChannel = string(*out.Outcome.DeliveredVia)
	}

	status := http.StatusOK
	if out.Outcome.UsedFallback() {
		resp.Message = messageFallback
		resp.DeliveryChannel = deliveryChannelFallback
		status = h.fallbackStatus
		if status >= http.StatusInternalServerError {
			resp.Status = "error"
		}
	}
	writeJSON(w, status, resp)
}

type HealthHandler struct {
	kb *models.KnowledgeBase
}

func NewHealthHandler(kb *models.KnowledgeBase) *HealthHandler {
	return &HealthHandler{kb: kb}
}

// Health reports liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "running"})
}

// Ready reports whether a knowledge base is loaded.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.kb == nil || h.kb.Len() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not_ready"})
		return
	}
	n := h.kb.Len()
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready", KnowledgeBaseTopics: &n})
}
