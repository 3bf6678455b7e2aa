// internal/server/router.go
package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "estate-assistant/internal/common/errors"
	"estate-assistant/internal/common/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const defaultMaxBodyBytes = 64 << 10

type RouterOptions struct {
	MaxBodyBytes       int64
	CORSAllowedOrigins []string
}

func SetupRoutes(enquiries *EnquiryHandler, health *HealthHandler, opts RouterOptions, log logger.Logger) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	errs := apperrors.NewErrorHandler(log)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TraceContextMiddleware)
	r.Use(LoggerMiddleware(log))
	r.Use(RecovererMiddleware(errs, log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.With(MaxBodyMiddleware(opts.MaxBodyBytes)).Post("/incoming-enquiry", enquiries.HandleIncomingEnquiry)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"status": "error", "message": "method not allowed"})
	})

	return r
}

// TraceContextMiddleware continues a trace started by the caller, if any.
func TraceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func LoggerMiddleware(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With(map[string]interface{}{"requestId": middleware.GetReqID(r.Context())})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.IntoContext(r.Context(), reqLog)))

			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				return
			}
			reqLog.Info("http request", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"durationMs": time.Since(start).Milliseconds(),
				"remoteAddr": r.RemoteAddr,
			})
		})
	}
}

// RecovererMiddleware turns a panic into a structured INTERNAL_ERROR response.
func RecovererMiddleware(errs *apperrors.ErrorHandler, log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered", map[string]interface{}{
					"panic": fmt.Sprint(rec),
					"path":  r.URL.Path,
				})
				errs.WriteHTTPError(w, r, "", apperrors.NewInternalError(errors.New("unexpected server error")))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func MaxBodyMiddleware(limit int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
