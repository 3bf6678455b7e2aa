// internal/workers/data-access/load-knowledge-base/handler_test.go
package loadknowledgebase

import (
	"context"
	"errors"
	"testing"

	"estate-assistant/internal/common/config"
	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"
	"estate-assistant/internal/workers/data-access/load-knowledge-base/sources"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Load_Static(t *testing.T) {
	cfg := LoadConfig(config.KnowledgeBaseConfig{Entries: map[string]string{
		"viewing": "Viewings run Monday to Saturday.",
		"pets":    "  ",
	}})
	h, err := NewHandler(cfg, Backends{}, logger.NewTestLogger(t))
	require.NoError(t, err)

	kb, err := h.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, kb.Len())
	assert.Equal(t, []string{"viewing"}, kb.Topics())
}

func TestHandler_Load_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("kb:estate", "deposit", "Five weeks' rent.", "fees", "No tenant fees.")
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := LoadConfig(config.KnowledgeBaseConfig{Source: "Redis", RedisKey: "kb:estate"})
	h, err := NewHandler(cfg, Backends{Redis: rdb}, logger.NewTestLogger(t))
	require.NoError(t, err)

	kb, err := h.Load(context.Background())
	require.NoError(t, err)
	v, ok := kb.Lookup("fees")
	assert.True(t, ok)
	assert.Equal(t, "No tenant fees.", v)
}

func TestHandler_Load_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT topic, answer FROM "knowledge_base" ORDER BY topic`).
		WillReturnRows(sqlmock.NewRows([]string{"topic", "answer"}).AddRow("valuation", "Free valuations within 48 hours."))

	h, err := NewHandler(LoadConfig(config.KnowledgeBaseConfig{Source: "postgres"}), Backends{Postgres: db}, logger.NewTestLogger(t))
	require.NoError(t, err)

	kb, err := h.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, kb.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Load_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) (*Config, Backends)
		wantMsg string
	}{
		{
			name: "empty static entries",
			setup: func(t *testing.T) (*Config, Backends) {
				return LoadConfig(config.KnowledgeBaseConfig{}), Backends{}
			},
			wantMsg: "no usable entries",
		},
		{
			name: "missing redis hash",
			setup: func(t *testing.T) (*Config, Backends) {
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return LoadConfig(config.KnowledgeBaseConfig{Source: "redis"}), Backends{Redis: rdb}
			},
			wantMsg: "no usable entries",
		},
		{
			name: "redis unreachable",
			setup: func(t *testing.T) (*Config, Backends) {
				db, mock := redismock.NewClientMock()
				mock.ExpectHGetAll(defaultRedisKey).SetErr(errors.New("dial tcp: connection refused"))
				return LoadConfig(config.KnowledgeBaseConfig{Source: "redis"}), Backends{Redis: db}
			},
			wantMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, b := tt.setup(t)
			h, err := NewHandler(cfg, b, logger.NewTestLogger(t))
			require.NoError(t, err)

			kb, err := h.Load(context.Background())
			require.Error(t, err)
			assert.Nil(t, kb)
			se, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeKnowledgeBaseLoadFailed, se.Code)
			assert.Contains(t, se.Details, tt.wantMsg)
		})
	}
}

func TestNewHandler_Validation(t *testing.T) {
	log := logger.NewNoOpLogger()

	_, err := NewHandler(LoadConfig(config.KnowledgeBaseConfig{Source: "csv"}), Backends{}, log)
	assert.ErrorIs(t, err, sources.ErrUnknownSource)

	_, err = NewHandler(LoadConfig(config.KnowledgeBaseConfig{Source: "redis"}), Backends{}, log)
	assert.ErrorIs(t, err, sources.ErrMissingBackend)

	_, err = NewHandler(LoadConfig(config.KnowledgeBaseConfig{Source: "postgres"}), Backends{}, log)
	assert.ErrorIs(t, err, sources.ErrMissingBackend)

	_, err = NewHandler(LoadConfig(config.KnowledgeBaseConfig{Source: "elasticsearch"}), Backends{}, log)
	assert.ErrorIs(t, err, sources.ErrMissingBackend)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig(config.KnowledgeBaseConfig{})
	assert.Equal(t, sources.NameStatic, cfg.Source)
	assert.Equal(t, defaultRedisKey, cfg.RedisKey)
	assert.Equal(t, defaultTable, cfg.Table)
	assert.Equal(t, defaultIndex, cfg.Index)
	assert.NoError(t, cfg.Validate())
}
