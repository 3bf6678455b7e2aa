// internal/server/response.go
package server

import (
	"encoding/json"
	"net/http"
)

const (
	messageDelivered = "Response sent successfully"
	messageFallback  = "WhatsApp failed, SMS sent instead"

	deliveryChannelFallback = "sms_fallback"
)

// EnquiryResponse is the body of an answered enquiry.
type EnquiryResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	EnquiryID       string `json:"enquiry_id"`
	DeliveryChannel string `json:"delivery_channel"`
	ReplySource     string `json:"reply_source"`
}

type HealthResponse struct {
	Status              string `json:"status"`
	KnowledgeBaseTopics *int   `json:"knowledge_base_topics,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
