package processenquiry

import (
	"context"

	"estate-assistant/internal/models"
	composereply "estate-assistant/internal/workers/ai-conversation/compose-reply"
	crmleadcreate "estate-assistant/internal/workers/crm/crm-lead-create"
	staffalert "estate-assistant/internal/workers/communication/staff-alert"
)

type Parser interface {
	Parse(raw []byte) (*models.Enquiry, error)
}

type Composer interface {
	Execute(ctx context.Context, input *composereply.Input) (*composereply.Output, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, recipient models.PhoneNumber, body string, preferred models.Channel) models.DeliveryOutcome
}

type LeadRecorder interface {
	Execute(ctx context.Context, input *crmleadcreate.Input) (*crmleadcreate.Output, error)
}

type Alerter interface {
	Execute(ctx context.Context, input *staffalert.Input) (*staffalert.Output, error)
}

// Output is returned for every enquiry that got past parsing, including
// failed ones, so callers can report the enquiry id.
type Output struct {
	EnquiryID   string                 `json:"enquiryId"`
	Platform    string                 `json:"platform"`
	Channel     models.Channel         `json:"channel"`
	ReplySource composereply.Source    `json:"replySource,omitempty"`
	Outcome     models.DeliveryOutcome `json:"outcome"`
}
