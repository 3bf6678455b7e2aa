package sources

import (
	"context"
	"errors"
)

const (
	NameStatic        = "static"
	NameRedis         = "redis"
	NamePostgres      = "postgres"
	NameElasticsearch = "elasticsearch"
)

var (
	ErrUnknownSource  = errors.New("unknown knowledge base source")
	ErrMissingBackend = errors.New("knowledge base backend not configured")
)

// Source fetches raw topic/answer pairs from one backend.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (map[string]string, error)
}
