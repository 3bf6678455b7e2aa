// internal/common/twilio/client.go
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	httpclient "estate-assistant/internal/common/http"
)

const whatsappPrefix = "whatsapp:"

// Error codes that mean the destination number itself is unusable.
// https://www.twilio.com/docs/api/errors
var invalidRecipientCodes = map[int]bool{
	21211: true, // invalid 'To' phone number
	21214: true, // 'To' phone number cannot be reached
	21217: true, // phone number does not appear to be valid
	21614: true, // 'To' number is not a valid mobile number
}

type Config struct {
	AccountSID   string
	AuthToken    string
	BaseURL      string
	SMSFrom      string
	WhatsAppFrom string
}

// Message is the subset of the Messages resource we read back.
type Message struct {
	SID          string  `json:"sid"`
	To           string  `json:"to"`
	From         string  `json:"from"`
	Status       string  `json:"status"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// APIError is returned for any non-2xx answer from the Messages endpoint.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		if e.Code != 0 {
			return fmt.Sprintf("twilio http %d: %s (code=%d)", e.StatusCode, e.Message, e.Code)
		}
		return fmt.Sprintf("twilio http %d: %s", e.StatusCode, e.Message)
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = "<empty body>"
	}
	if len(body) > 1000 {
		body = body[:1000] + "..."
	}
	return fmt.Sprintf("twilio http %d: %s", e.StatusCode, body)
}

func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

// IsInvalidRecipient reports whether err says the destination number is unusable.
func IsInvalidRecipient(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return invalidRecipientCodes[ae.Code]
	}
	return false
}

type Client struct {
	cfg  Config
	http *httpclient.Client
}

func NewClient(cfg Config, hc *httpclient.Client) (*Client, error) {
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio: account sid and auth token are required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if hc == nil {
		hc = httpclient.NewClientFrom(nil)
	}
	return &Client{cfg: cfg, http: hc}, nil
}

// SendSMS sends body to an E.164 number from the configured SMS sender.
func (c *Client) SendSMS(ctx context.Context, to, body string) (*Message, error) {
	if c.cfg.SMSFrom == "" {
		return nil, fmt.Errorf("twilio: sms sender not configured")
	}
	return c.SendMessage(ctx, to, c.cfg.SMSFrom, body)
}

// SendWhatsApp sends body over the WhatsApp channel. Both numbers get the
// "whatsapp:" address prefix.
func (c *Client) SendWhatsApp(ctx context.Context, to, body string) (*Message, error) {
	if c.cfg.WhatsAppFrom == "" {
		return nil, fmt.Errorf("twilio: whatsapp sender not configured")
	}
	return c.SendMessage(ctx, withWhatsAppPrefix(to), withWhatsAppPrefix(c.cfg.WhatsAppFrom), body)
}

func withWhatsAppPrefix(n string) string {
	n = strings.TrimSpace(n)
	if strings.HasPrefix(n, whatsappPrefix) {
		return n
	}
	return whatsappPrefix + n
}

// SendMessage performs exactly one POST to the Messages resource.
func (c *Client) SendMessage(ctx context.Context, to, from, body string) (*Message, error) {
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("twilio: To required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("twilio: Body required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("twilio: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil {
			apiErr.Code = ae.Code
			apiErr.Message = strings.TrimSpace(ae.Message)
		}
		return nil, apiErr
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("twilio: decode response: %w", err)
	}
	if msg.Status == "failed" || msg.Status == "undelivered" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: "message " + msg.Status}
		if msg.ErrorCode != nil {
			apiErr.Code = *msg.ErrorCode
		}
		if msg.ErrorMessage != nil {
			apiErr.Message = *msg.ErrorMessage
		}
		return nil, apiErr
	}
	return &msg, nil
}
