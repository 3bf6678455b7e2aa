// internal/workers/application/process-enquiry/handler_test.go
package processenquiry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/models"
	composereply "estate-assistant/internal/workers/ai-conversation/compose-reply"
	inboundenquiry "estate-assistant/internal/workers/communication/inbound-enquiry"
	staffalert "estate-assistant/internal/workers/communication/staff-alert"
	crmleadcreate "estate-assistant/internal/workers/crm/crm-lead-create"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockComposer struct {
	ExecuteFunc func(ctx context.Context, input *composereply.Input) (*composereply.Output, error)
	mu          sync.Mutex
	inputs      []*composereply.Input
}

func (m *MockComposer) Execute(ctx context.Context, input *composereply.Input) (*composereply.Output, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	return m.ExecuteFunc(ctx, input)
}

type dispatchCall struct {
	To        string
	Body      string
	Preferred models.Channel
}

type MockDispatcher struct {
	DispatchFunc func(preferred models.Channel) models.DeliveryOutcome
	mu           sync.Mutex
	calls        []dispatchCall
}

func (m *MockDispatcher) Dispatch(_ context.Context, to models.PhoneNumber, body string, preferred models.Channel) models.DeliveryOutcome {
	m.mu.Lock()
	m.calls = append(m.calls, dispatchCall{To: to.String(), Body: body, Preferred: preferred})
	m.mu.Unlock()
	return m.DispatchFunc(preferred)
}

type MockLeads struct {
	err    error
	inputs []*crmleadcreate.Input
}

func (m *MockLeads) Execute(_ context.Context, in *crmleadcreate.Input) (*crmleadcreate.Output, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &crmleadcreate.Output{LeadID: "L1"}, nil
}

type MockAlerts struct {
	inputs []*staffalert.Input
}

func (m *MockAlerts) Execute(_ context.Context, in *staffalert.Input) (*staffalert.Output, error) {
	m.inputs = append(m.inputs, in)
	return &staffalert.Output{MessageID: "ses-1"}, nil
}

func llmReply(text string) func(context.Context, *composereply.Input) (*composereply.Output, error) {
	return func(context.Context, *composereply.Input) (*composereply.Output, error) {
		return &composereply.Output{Text: text, Source: composereply.SourceLLM}, nil
	}
}

func deliveredOn(c models.Channel) func(models.Channel) models.DeliveryOutcome {
	return func(p models.Channel) models.DeliveryOutcome {
		return models.DeliveryOutcome{AttemptedChannel: p, Succeeded: true, DeliveredVia: models.ChannelPtr(c), Attempts: 1, MessageID: "SM1"}
	}
}

func fellBack(p models.Channel) models.DeliveryOutcome {
	return models.DeliveryOutcome{
		AttemptedChannel: p,
		Succeeded:        true,
		FellBackTo:       models.ChannelPtr(models.ChannelSMS),
		DeliveredVia:     models.ChannelPtr(models.ChannelSMS),
		Attempts:         2,
	}
}

func undelivered(p models.Channel) models.DeliveryOutcome {
	return models.DeliveryOutcome{
		AttemptedChannel: p,
		FellBackTo:       models.ChannelPtr(models.ChannelSMS),
		Attempts:         2,
		Error:            apperrors.NewChannelUnavailableError("sms", errors.New("twilio http 503")),
	}
}

func rejectedNumber(p models.Channel) models.DeliveryOutcome {
	return models.DeliveryOutcome{
		AttemptedChannel: p,
		Attempts:         1,
		Error:            apperrors.NewInvalidRecipientError("twilio http 400: invalid 'To' number (code=21211)"),
	}
}

type fixture struct {
	handler    *Handler
	composer   *MockComposer
	dispatcher *MockDispatcher
	leads      *MockLeads
	alerts     *MockAlerts
}

func newFixture(t *testing.T, compose func(context.Context, *composereply.Input) (*composereply.Output, error), dispatch func(models.Channel) models.DeliveryOutcome) *fixture {
	t.Helper()
	parser, err := inboundenquiry.NewHandler(inboundenquiry.DefaultConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	f := &fixture{
		composer:   &MockComposer{ExecuteFunc: compose},
		dispatcher: &MockDispatcher{DispatchFunc: dispatch},
		leads:      &MockLeads{},
		alerts:     &MockAlerts{},
	}
	f.handler, err = NewHandler(DefaultConfig(), Dependencies{
		Parser:        parser,
		Composer:      f.composer,
		Dispatcher:    f.dispatcher,
		Leads:         f.leads,
		Alerts:        f.alerts,
		KnowledgeBase: models.NewKnowledgeBase(map[string]string{"pets": "Pets by arrangement."}),
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return f
}

const (
	whatsappBody = `{"platform":"whatsapp","user_query":"Can I bring my cat?","user_phone_number":"+447700900123"}`
	portalBody   = `{"platform":"zoopla","user_query":"Is it still available?","user_phone_number":"+447700900123"}`
)

// ==========================
// Tests
// ==========================

func TestHandler_Execute_Delivered(t *testing.T) {
	f := newFixture(t, llmReply("Pets by arrangement."), deliveredOn(models.ChannelWhatsApp))

	out, err := f.handler.Execute(context.Background(), []byte(whatsappBody))
	require.NoError(t, err)

	assert.NotEmpty(t, out.EnquiryID)
	assert.Equal(t, models.ChannelWhatsApp, out.Channel)
	assert.Equal(t, composereply.SourceLLM, out.ReplySource)
	assert.True(t, out.Outcome.Succeeded)
	assert.False(t, out.Outcome.UsedFallback())

	require.Len(t, f.composer.inputs, 1)
	assert.Equal(t, "Can I bring my cat?", f.composer.inputs[0].Query)
	assert.Equal(t, out.EnquiryID, f.composer.inputs[0].EnquiryID)
	assert.Equal(t, 1, f.composer.inputs[0].KnowledgeBase.Len())

	require.Len(t, f.dispatcher.calls, 1)
	assert.Equal(t, dispatchCall{To: "+447700900123", Body: "Pets by arrangement.", Preferred: models.ChannelWhatsApp}, f.dispatcher.calls[0])

	require.Len(t, f.leads.inputs, 1)
	assert.Equal(t, "whatsapp", f.leads.inputs[0].DeliveredVia)
	assert.Empty(t, f.alerts.inputs)
}

func TestHandler_Execute_PortalUsesSMS(t *testing.T) {
	f := newFixture(t, llmReply("Yes."), deliveredOn(models.ChannelSMS))

	out, err := f.handler.Execute(context.Background(), []byte(portalBody))
	require.NoError(t, err)
	assert.Equal(t, models.ChannelSMS, f.dispatcher.calls[0].Preferred)
	assert.Equal(t, "zoopla", out.Platform)
}

func TestHandler_Execute_Fallback(t *testing.T) {
	f := newFixture(t, llmReply("Yes."), fellBack)

	out, err := f.handler.Execute(context.Background(), []byte(whatsappBody))
	require.NoError(t, err)
	assert.True(t, out.Outcome.UsedFallback())
	assert.Equal(t, "sms", f.leads.inputs[0].DeliveredVia)
	assert.Empty(t, f.alerts.inputs)
}

func TestHandler_Execute_RejectedBeforeAnyNetworkCall(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode apperrors.ErrorCode
	}{
		{name: "missing user_query", body: `{"platform":"whatsapp","user_phone_number":"+447700900123"}`, wantCode: apperrors.ErrCodeMalformedRequest},
		{name: "missing phone", body: `{"platform":"whatsapp","user_query":"hi"}`, wantCode: apperrors.ErrCodeMalformedRequest},
		{name: "not json", body: `hello`, wantCode: apperrors.ErrCodeMalformedRequest},
		{name: "unusable phone", body: `{"platform":"sms","user_query":"hi","user_phone_number":"call me"}`, wantCode: apperrors.ErrCodeInvalidRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, llmReply("x"), deliveredOn(models.ChannelSMS))

			out, err := f.handler.Execute(context.Background(), []byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, out)
			se, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, se.Code)

			assert.Empty(t, f.composer.inputs)
			assert.Empty(t, f.dispatcher.calls)
			assert.Empty(t, f.leads.inputs)
			assert.Empty(t, f.alerts.inputs)
		})
	}
}

func TestHandler_Execute_CompositionFailure(t *testing.T) {
	f := newFixture(t, func(context.Context, *composereply.Input) (*composereply.Output, error) {
		return nil, apperrors.NewCompositionTimeoutError()
	}, deliveredOn(models.ChannelWhatsApp))

	out, err := f.handler.Execute(context.Background(), []byte(whatsappBody))
	require.Error(t, err)
	require.NotNil(t, out)
	assert.NotEmpty(t, out.EnquiryID)
	se, _ := apperrors.As(err)
	assert.Equal(t, apperrors.ErrCodeCompositionTimeout, se.Code)
	assert.Empty(t, f.dispatcher.calls)
}

func TestHandler_Execute_CallerCancelledDuringComposition(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Cats are welcome by arrangement."}},
			},
		})
	}))
	defer llm.Close()

	composer, err := composereply.NewHandler(&composereply.Config{
		BaseURL:         llm.URL,
		APIKey:          "sk-test",
		Model:           "gpt-4o-mini",
		SystemPrompt:    "Answer from the knowledge base.",
		Timeout:         2 * time.Second,
		FallbackMessage: "Thanks for your enquiry, an agent will be in touch shortly.",
	}, nil, nil, logger.NewTestLogger(t))
	require.NoError(t, err)

	f := newFixture(t, composer.Execute, deliveredOn(models.ChannelWhatsApp))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	out, err := f.handler.Execute(ctx, []byte(whatsappBody))
	require.NoError(t, err)
	assert.Equal(t, composereply.SourceLLM, out.ReplySource)
	require.Len(t, f.dispatcher.calls, 1)
	assert.Equal(t, "Cats are welcome by arrangement.", f.dispatcher.calls[0].Body)
}

func TestHandler_Execute_FallbackReplyIsStillSent(t *testing.T) {
	f := newFixture(t, func(context.Context, *composereply.Input) (*composereply.Output, error) {
		return &composereply.Output{Text: "Thanks, an agent will be in touch.", Source: composereply.SourceFallback, Cause: apperrors.NewCompositionFailedError(errors.New("503"))}, nil
	}, deliveredOn(models.ChannelWhatsApp))

	out, err := f.handler.Execute(context.Background(), []byte(whatsappBody))
	require.NoError(t, err)
	assert.Equal(t, composereply.SourceFallback, out.ReplySource)
	assert.Equal(t, "Thanks, an agent will be in touch.", f.dispatcher.calls[0].Body)
}

func TestHandler_Execute_DeliveryFailure(t *testing.T) {
	f := newFixture(t, llmReply("Yes."), undelivered)

	out, err := f.handler.Execute(context.Background(), []byte(whatsappBody))
	require.Error(t, err)
	require.NotNil(t, out)
	assert.False(t, out.Outcome.Succeeded)

	se, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDeliveryFailed, se.Code)
	assert.Equal(t, "CHANNEL_UNAVAILABLE", se.Metadata["cause"])
	assert.Equal(t, 2, se.Metadata["attempts"])

	require.Len(t, f.alerts.inputs, 1)
	assert.Equal(t, out.EnquiryID, f.alerts.inputs[0].EnquiryID)
	require.Len(t, f.leads.inputs, 1)
	assert.Empty(t, f.leads.inputs[0].DeliveredVia)
}

func TestHandler_Execute_RecipientRejectedByProvider(t *testing.T) {
	f := newFixture(t, llmReply("Yes."), rejectedNumber)

	_, err := f.handler.Execute(context.Background(), []byte(whatsappBody))
	require.Error(t, err)
	se, _ := apperrors.As(err)
	assert.Equal(t, apperrors.ErrCodeInvalidRecipient, se.Code)
	assert.Len(t, f.alerts.inputs, 1)
}

func TestHandler_Execute_LeadFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture(t, llmReply("Yes."), deliveredOn(models.ChannelWhatsApp))
	f.leads.err = apperrors.NewCRMLeadCreateFailedError(errors.New("INVALID_TOKEN"))

	out, err := f.handler.Execute(context.Background(), []byte(whatsappBody))
	require.NoError(t, err)
	assert.True(t, out.Outcome.Succeeded)
}

func TestHandler_Execute_WithoutFollowUps(t *testing.T) {
	parser, err := inboundenquiry.NewHandler(nil, logger.NewNoOpLogger())
	require.NoError(t, err)
	h, err := NewHandler(DefaultConfig(), Dependencies{
		Parser:     parser,
		Composer:   &MockComposer{ExecuteFunc: llmReply("ok")},
		Dispatcher: &MockDispatcher{DispatchFunc: undelivered},
	}, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), []byte(whatsappBody))
	se, _ := apperrors.As(err)
	require.NotNil(t, se)
	assert.Equal(t, apperrors.ErrCodeDeliveryFailed, se.Code)
}

func TestNewHandler_RequiresCoreSteps(t *testing.T) {
	_, err := NewHandler(DefaultConfig(), Dependencies{}, logger.NewNoOpLogger())
	assert.Error(t, err)

	_, err = NewHandler(&Config{}, Dependencies{}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "delivered", outcomeLabel(&Output{Outcome: models.DeliveryOutcome{Succeeded: true, DeliveredVia: models.ChannelPtr(models.ChannelSMS)}}, nil))
	assert.Equal(t, "fallback", outcomeLabel(&Output{Outcome: fellBack(models.ChannelWhatsApp)}, nil))
	assert.Equal(t, "MALFORMED_REQUEST", outcomeLabel(nil, apperrors.NewMalformedRequestError("x")))
}
