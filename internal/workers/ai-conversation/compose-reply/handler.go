// internal/workers/ai-conversation/compose-reply/handler.go
package composereply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "estate-assistant/internal/common/errors"
	httpclient "estate-assistant/internal/common/http"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/metrics"
	"estate-assistant/internal/common/observability"
	"estate-assistant/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	TaskType = "compose-reply"

	completionsPath = "/v1/chat/completions"

	// maxRetryAfter caps a provider's Retry-After hint.
	maxRetryAfter = 5 * time.Second
)

var errEmptyCompletion = errors.New("model returned an empty reply")

type Handler struct {
	config *Config
	client *httpclient.Client
	cache  ReplyCache
	logger logger.Logger
}

// NewHandler builds a composer. cache may be nil to disable reply caching.
func NewHandler(cfg *Config, client *httpclient.Client, cache ReplyCache, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		// the per-call deadline comes from the context
		client = httpclient.NewClient(0)
	}
	if cfg.CacheTTL <= 0 {
		cache = nil
	}
	return &Handler{
		config: cfg,
		client: client,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Compose drafts a reply to query grounded on kb.
func (h *Handler) Compose(ctx context.Context, query string, kb *models.KnowledgeBase) (*Output, error) {
	return h.Execute(ctx, &Input{Query: query, KnowledgeBase: kb})
}

// Execute returns the model's reply, a cached reply, or the configured
// fallback text. It only returns an error when FailOnError is set or no
// fallback text is configured.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues("compose").Observe(time.Since(start).Seconds())
	}()

	ctx, span := observability.Tracer().Start(ctx, "compose-reply")
	defer span.End()

	log := h.logger.With(map[string]interface{}{"enquiryId": input.EnquiryID})
	kb := input.KnowledgeBase
	if kb == nil {
		kb = models.NewKnowledgeBase(nil)
	}

	var key string
	if h.cache != nil {
		key = cacheKey(input.Query, kb.Fingerprint())
		if text, ok, err := h.cache.Get(ctx, key); err != nil {
			log.Warn("reply cache read failed", map[string]interface{}{"error": err.Error()})
		} else if ok {
			span.SetAttributes(attribute.String("reply.source", string(SourceCache)))
			metrics.Compositions.WithLabelValues(string(SourceCache)).Inc()
			log.Debug("reply served from cache", nil)
			return &Output{Text: text, Source: SourceCache}, nil
		}
	}

	text, err := h.complete(ctx, input.Query, kb)
	if err != nil {
		stdErr := apperrors.Normalize(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stdErr.Code))

		if h.config.FailOnError || h.config.FallbackMessage == "" {
			log.Error("reply composition failed", map[string]interface{}{
				"errorCode": string(stdErr.Code),
				"details":   stdErr.Details,
			})
			return nil, stdErr
		}

		log.Warn("reply composition failed, using fallback message", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		span.SetAttributes(attribute.String("reply.source", string(SourceFallback)))
		metrics.Compositions.WithLabelValues(string(SourceFallback)).Inc()
		return &Output{Text: h.config.FallbackMessage, Source: SourceFallback, Cause: stdErr}, nil
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, text, h.config.CacheTTL); err != nil {
			log.Warn("reply cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	span.SetAttributes(attribute.String("reply.source", string(SourceLLM)))
	metrics.Compositions.WithLabelValues(string(SourceLLM)).Inc()
	log.Info("reply composed", map[string]interface{}{
		"chars":      len(text),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return &Output{Text: text, Source: SourceLLM}, nil
}

// complete calls the chat completions API with retries inside one overall deadline.
func (h *Handler) complete(ctx context.Context, query string, kb *models.KnowledgeBase) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: h.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: h.buildPrompt(kb)},
			{Role: "user", Content: query},
		},
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	})
	if err != nil {
		return "", apperrors.NewCompositionFailedError(err)
	}

	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := httpclient.Backoff(attempt)
			var se *httpclient.StatusError
			if errors.As(lastErr, &se) && se.RetryAfter > delay {
				delay = se.RetryAfter
			}
			if err := httpclient.Sleep(ctx, delay); err != nil {
				return "", interruptedError(ctx)
			}
		}

		text, err := h.callOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", interruptedError(ctx)
		}
		if !httpclient.IsRetryableError(err) {
			break
		}
		h.logger.Debug("completion attempt failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return "", apperrors.NewCompositionFailedError(lastErr)
}

// interruptedError labels a context that ended before a reply arrived. Only
// an expired deadline is a timeout.
func interruptedError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.NewCompositionFailedError(ctx.Err())
	}
	return apperrors.NewCompositionTimeoutError()
}

func (h *Handler) callOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.BaseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(raw)
		var ce chatError
		if json.Unmarshal(raw, &ce) == nil && ce.Error.Message != "" {
			msg = ce.Error.Message
		}
		return "", &httpclient.StatusError{
			StatusCode: resp.StatusCode,
			Body:       msg,
			RetryAfter: httpclient.RetryAfter(resp, 0, maxRetryAfter),
		}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errEmptyCompletion
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func (h *Handler) buildPrompt(kb *models.KnowledgeBase) string {
	var b strings.Builder
	b.WriteString(h.config.SystemPrompt)
	b.WriteString("\n\nKnowledge base:\n")

	topics := kb.Topics()
	for _, topic := range topics {
		answer, _ := kb.Lookup(topic)
		fmt.Fprintf(&b, "- %s: %s\n", topic, answer)
	}
	if len(topics) == 0 {
		b.WriteString("(empty)\n")
	}
	return b.String()
}
