package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"estate-assistant/internal/common/config"
	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/models"
	composereply "estate-assistant/internal/workers/ai-conversation/compose-reply"
	processenquiry "estate-assistant/internal/workers/application/process-enquiry"
	channeldispatch "estate-assistant/internal/workers/communication/channel-dispatch"
	inboundenquiry "estate-assistant/internal/workers/communication/inbound-enquiry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replyText = "Yes, 12 Oak St is still available. Viewings run Monday to Saturday."

// ==========================
// Test Fixture
// ==========================

type fixture struct {
	server   *httptest.Server
	llmCalls atomic.Int32
	waCalls  atomic.Int32
	smsCalls atomic.Int32
	lastSMS  atomic.Value
}

type fixtureOptions struct {
	whatsapp       func(ctx context.Context) channeldispatch.SendResult
	sms            func(ctx context.Context) channeldispatch.SendResult
	fallbackStatus int
}

func delivered(id string) func(ctx context.Context) channeldispatch.SendResult {
	return func(context.Context) channeldispatch.SendResult {
		return channeldispatch.SendResult{Status: channeldispatch.StatusDelivered, MessageID: id}
	}
}

func unavailable(context.Context) channeldispatch.SendResult {
	return channeldispatch.SendResult{Status: channeldispatch.StatusUnavailable, Err: errors.New("provider down")}
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)
	f := &fixture{}

	if opts.whatsapp == nil {
		opts.whatsapp = delivered("WA1")
	}
	if opts.sms == nil {
		opts.sms = delivered("SM1")
	}

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.llmCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": replyText}},
			},
		})
	}))
	t.Cleanup(llm.Close)

	kb := models.NewKnowledgeBase(map[string]string{"viewing": "Viewings run Monday to Saturday."})

	parser, err := inboundenquiry.NewHandler(inboundenquiry.DefaultConfig(), log)
	require.NoError(t, err)

	composer, err := composereply.NewHandler(&composereply.Config{
		BaseURL:         llm.URL,
		APIKey:          "sk-test",
		Model:           "gpt-4o-mini",
		SystemPrompt:    "Answer from the knowledge base.",
		Timeout:         2 * time.Second,
		FallbackMessage: "An agent will be in touch.",
	}, nil, nil, log)
	require.NoError(t, err)

	whatsapp := channeldispatch.SenderFunc{On: models.ChannelWhatsApp, Fn: func(ctx context.Context, _ models.PhoneNumber, _ string) channeldispatch.SendResult {
		f.waCalls.Add(1)
		return opts.whatsapp(ctx)
	}}
	sms := channeldispatch.SenderFunc{On: models.ChannelSMS, Fn: func(ctx context.Context, to models.PhoneNumber, body string) channeldispatch.SendResult {
		f.smsCalls.Add(1)
		f.lastSMS.Store(to.String() + "|" + body)
		return opts.sms(ctx)
	}}
	dispatcher, err := channeldispatch.NewHandler(&channeldispatch.Config{AttemptTimeout: 50 * time.Millisecond}, whatsapp, sms, log)
	require.NoError(t, err)

	processor, err := processenquiry.NewHandler(processenquiry.DefaultConfig(), processenquiry.Dependencies{
		Parser:        parser,
		Composer:      composer,
		Dispatcher:    dispatcher,
		KnowledgeBase: kb,
	}, log)
	require.NoError(t, err)

	router := SetupRoutes(
		NewEnquiryHandler(processor, opts.fallbackStatus, log),
		NewHealthHandler(kb),
		RouterOptions{MaxBodyBytes: 1024},
		log,
	)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) post(t *testing.T, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/incoming-enquiry", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "error object missing: %v", body)
	code, _ := e["code"].(string)
	return code
}

const whatsappEnquiry = `{"platform":"whatsapp","user_query":"Is 12 Oak St available?","user_phone_number":"+447700900123"}`

// ==========================
// Webhook Scenarios
// ==========================

func TestIncomingEnquiry_WhatsAppDelivered(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	status, body := f.post(t, whatsappEnquiry)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, messageDelivered, body["message"])
	assert.Equal(t, "whatsapp", body["delivery_channel"])
	assert.Equal(t, "llm", body["reply_source"])
	assert.NotEmpty(t, body["enquiry_id"])
	assert.EqualValues(t, 1, f.llmCalls.Load())
	assert.EqualValues(t, 1, f.waCalls.Load())
	assert.EqualValues(t, 0, f.smsCalls.Load())
}

func TestIncomingEnquiry_PortalGoesStraightToSMS(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	status, body := f.post(t, `{"platform":"rightmove","user_query":"Can I view on Saturday?","user_phone_number":"+447700900123"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sms", body["delivery_channel"])
	assert.EqualValues(t, 0, f.waCalls.Load())
	assert.EqualValues(t, 1, f.smsCalls.Load())
}

func TestIncomingEnquiry_WhatsAppTimesOutFallsBackToSMS(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		whatsapp: func(ctx context.Context) channeldispatch.SendResult {
			<-ctx.Done()
			return channeldispatch.SendResult{Status: channeldispatch.StatusUnavailable, Err: ctx.Err()}
		},
	})

	status, body := f.post(t, whatsappEnquiry)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, messageFallback, body["message"])
	assert.Equal(t, deliveryChannelFallback, body["delivery_channel"])
	assert.EqualValues(t, 1, f.waCalls.Load())
	assert.EqualValues(t, 1, f.smsCalls.Load())
	assert.Equal(t, "+447700900123|"+replyText, f.lastSMS.Load())
}

func TestIncomingEnquiry_FallbackStatusIsConfigurable(t *testing.T) {
	f := newFixture(t, fixtureOptions{whatsapp: unavailable, fallbackStatus: http.StatusInternalServerError})

	status, body := f.post(t, whatsappEnquiry)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, messageFallback, body["message"])
	assert.Equal(t, deliveryChannelFallback, body["delivery_channel"])
	assert.EqualValues(t, 1, f.smsCalls.Load())
}

func TestIncomingEnquiry_RejectedBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{
			name:       "missing phone",
			body:       `{"platform":"whatsapp","user_query":"Is 12 Oak St available?"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ErrCodeMalformedRequest,
		},
		{
			name:       "not json",
			body:       `hello`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ErrCodeMalformedRequest,
		},
		{
			name:       "invalid phone",
			body:       `{"platform":"sms","user_query":"hi","user_phone_number":"07700 900123"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.ErrCodeInvalidRecipient,
		},
		{
			name:       "oversized body",
			body:       `{"platform":"sms","user_query":"` + strings.Repeat("a", 2048) + `","user_phone_number":"+447700900123"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.ErrCodeMalformedRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOptions{})

			status, body := f.post(t, tt.body)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, string(tt.wantCode), errorCode(t, body))
			assert.EqualValues(t, 0, f.llmCalls.Load())
			assert.EqualValues(t, 0, f.waCalls.Load())
			assert.EqualValues(t, 0, f.smsCalls.Load())
		})
	}
}

func TestIncomingEnquiry_BothChannelsFail(t *testing.T) {
	f := newFixture(t, fixtureOptions{whatsapp: unavailable, sms: unavailable})

	status, body := f.post(t, whatsappEnquiry)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, string(apperrors.ErrCodeDeliveryFailed), errorCode(t, body))
	assert.NotEmpty(t, body["enquiry_id"])
	assert.EqualValues(t, 1, f.waCalls.Load())
	assert.EqualValues(t, 1, f.smsCalls.Load())
}

func TestIncomingEnquiry_RecipientRejectedByProvider(t *testing.T) {
	f := newFixture(t, fixtureOptions{whatsapp: func(context.Context) channeldispatch.SendResult {
		return channeldispatch.SendResult{Status: channeldispatch.StatusRecipientRejected, Err: errors.New("not a whatsapp user")}
	}})

	status, body := f.post(t, whatsappEnquiry)

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(apperrors.ErrCodeInvalidRecipient), errorCode(t, body))
	assert.EqualValues(t, 0, f.smsCalls.Load())
}

type panickingProcessor struct{}

func (panickingProcessor) Execute(context.Context, []byte) (*processenquiry.Output, error) {
	panic("boom")
}

func TestIncomingEnquiry_PanicBecomesInternalError(t *testing.T) {
	log := logger.NewTestLogger(t)
	router := SetupRoutes(NewEnquiryHandler(panickingProcessor{}, 0, log), NewHealthHandler(nil), RouterOptions{}, log)

	req := httptest.NewRequest(http.MethodPost, "/incoming-enquiry", strings.NewReader(whatsappEnquiry))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(apperrors.ErrCodeInternal), errorCode(t, body))
}

// ==========================
// Operational Endpoints
// ==========================

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", health.Status)

	resp, err = http.Get(f.server.URL + "/ready")
	require.NoError(t, err)
	var ready HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", ready.Status)
	require.NotNil(t, ready.KnowledgeBaseTopics)
	assert.Equal(t, 1, *ready.KnowledgeBaseTopics)
}

func TestReady_EmptyKnowledgeBase(t *testing.T) {
	h := NewHealthHandler(models.NewKnowledgeBase(nil))
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.post(t, whatsappEnquiry)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "enquiry_requests_in_flight")
	assert.Contains(t, string(raw), "delivery_attempts_total")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	resp, err := http.Get(f.server.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/incoming-enquiry")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_StartAndShutdown(t *testing.T) {
	log := logger.NewTestLogger(t)
	srv := New(config.ServerConfig{Address: "127.0.0.1:0", ReadTimeout: 1000, WriteTimeout: 1000}, http.NotFoundHandler(), log)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
