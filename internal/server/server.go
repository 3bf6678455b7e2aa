// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"estate-assistant/internal/common/config"
	"estate-assistant/internal/common/logger"
)

type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

func New(cfg config.ServerConfig, handler http.Handler, log logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       config.GetDuration(cfg.ReadTimeout),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      config.GetDuration(cfg.WriteTimeout),
			IdleTimeout:       60 * time.Second,
		},
		logger: log,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down", nil)
	return s.httpServer.Shutdown(ctx)
}
