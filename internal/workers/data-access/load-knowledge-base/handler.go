// internal/workers/data-access/load-knowledge-base/handler.go
package loadknowledgebase

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/common/metrics"
	"estate-assistant/internal/models"
	"estate-assistant/internal/workers/data-access/load-knowledge-base/sources"
)

const TaskType = "load-knowledge-base"

var errEmptyKnowledgeBase = errors.New("no usable entries")

type Handler struct {
	config *Config
	source sources.Source
	logger logger.Logger
}

func NewHandler(cfg *Config, backends Backends, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType, "source": cfg.Source})
	src, err := newSource(cfg, backends, log)
	if err != nil {
		return nil, err
	}
	return &Handler{
		config: cfg,
		source: src,
		logger: log,
	}, nil
}

func newSource(cfg *Config, b Backends, log logger.Logger) (sources.Source, error) {
	switch cfg.Source {
	case sources.NameStatic:
		return sources.NewStatic(cfg.Entries), nil
	case sources.NameRedis:
		return sources.NewRedis(b.Redis, cfg.RedisKey)
	case sources.NamePostgres:
		return sources.NewPostgres(b.Postgres, cfg.Table)
	case sources.NameElasticsearch:
		return sources.NewElasticsearch(b.Elasticsearch, cfg.Index, log)
	default:
		return nil, fmt.Errorf("%w: %q", sources.ErrUnknownSource, cfg.Source)
	}
}

// Load reads the knowledge base once. An empty result is an error because
// replies cannot be grounded on nothing.
func (h *Handler) Load(ctx context.Context) (*models.KnowledgeBase, error) {
	start := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues("load_knowledge_base").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	entries, err := h.source.Fetch(ctx)
	if err != nil {
		h.logger.Error("knowledge base fetch failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(h.source.Name(), err)
	}

	kb := models.NewKnowledgeBase(entries)
	if kb.Len() == 0 {
		h.logger.Error("knowledge base is empty", map[string]interface{}{"raw": len(entries)})
		return nil, apperrors.NewKnowledgeBaseLoadFailedError(h.source.Name(), errEmptyKnowledgeBase)
	}
	if dropped := len(entries) - kb.Len(); dropped > 0 {
		h.logger.Warn("dropped blank knowledge base entries", map[string]interface{}{"dropped": dropped})
	}

	h.logger.Info("knowledge base loaded", map[string]interface{}{
		"topics":      kb.Len(),
		"fingerprint": kb.Fingerprint()[:12],
		"durationMs":  time.Since(start).Milliseconds(),
	})
	return kb, nil
}
