// internal/workers/data-access/load-knowledge-base/config.go
package loadknowledgebase

import (
	"fmt"
	"strings"
	"time"

	"estate-assistant/internal/common/config"
	"estate-assistant/internal/workers/data-access/load-knowledge-base/sources"
)

const (
	defaultRedisKey = "knowledge_base"
	defaultTable    = "knowledge_base"
	defaultIndex    = "knowledge_base"
	defaultTimeout  = 10 * time.Second
)

type Config struct {
	Source   string
	Entries  map[string]string
	RedisKey string
	Table    string
	Index    string
	Timeout  time.Duration
}

func LoadConfig(c config.KnowledgeBaseConfig) *Config {
	cfg := &Config{
		Source:   strings.ToLower(strings.TrimSpace(c.Source)),
		Entries:  c.Entries,
		RedisKey: c.RedisKey,
		Table:    c.Table,
		Index:    c.Index,
		Timeout:  defaultTimeout,
	}
	if cfg.Source == "" {
		cfg.Source = sources.NameStatic
	}
	if cfg.RedisKey == "" {
		cfg.RedisKey = defaultRedisKey
	}
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if cfg.Index == "" {
		cfg.Index = defaultIndex
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.Source {
	case sources.NameStatic, sources.NameRedis, sources.NamePostgres, sources.NameElasticsearch:
	default:
		return fmt.Errorf("%w: %q", sources.ErrUnknownSource, c.Source)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("knowledge base load timeout must be positive")
	}
	return nil
}
