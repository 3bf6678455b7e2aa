package errors

import (
	"encoding/json"
	"net/http"
)

// Logger is the subset of the application logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorBody is the JSON shape of every failed webhook response.
type ErrorBody struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	EnquiryID string         `json:"enquiry_id,omitempty"`
	Error     *StandardError `json:"error"`
}

type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WriteHTTPError normalizes err, logs it and writes a structured JSON body.
// Client side problems log at warn, everything else at error.
func (h *ErrorHandler) WriteHTTPError(w http.ResponseWriter, r *http.Request, enquiryID string, err error) {
	stdErr := Normalize(err)
	if stdErr == nil {
		stdErr = NewInternalError(nil)
	}
	status := HTTPStatus(stdErr.Code)

	h.logError(r, enquiryID, status, stdErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Status:    "error",
		Message:   stdErr.Message,
		EnquiryID: enquiryID,
		Error:     stdErr,
	})
}

func (h *ErrorHandler) logError(r *http.Request, enquiryID string, status int, stdErr *StandardError) {
	if h.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"enquiryId":     enquiryID,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"httpStatus":    status,
	}
	if r != nil {
		fields["path"] = r.URL.Path
		fields["method"] = r.Method
	}
	if status < http.StatusInternalServerError {
		h.logger.Warn("Request rejected", fields)
		return
	}
	h.logger.Error("Request failed", fields)
}
