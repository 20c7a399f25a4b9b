// Package router mounts the Detection Engine's HTTP surface: the SSE
// transport endpoints, the queue/commission admin endpoints, and the
// health/metrics probes, behind the shared middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/stanleyndaba/clario-detection-engine/commission"
	"github.com/stanleyndaba/clario-detection-engine/config"
	"github.com/stanleyndaba/clario-detection-engine/handler"
	enginemw "github.com/stanleyndaba/clario-detection-engine/middleware"
	"github.com/stanleyndaba/clario-detection-engine/observability"
	"github.com/stanleyndaba/clario-detection-engine/orchestrator"
	"github.com/stanleyndaba/clario-detection-engine/queue"
	"github.com/stanleyndaba/clario-detection-engine/sse"
)

// Deps collects everything NewRouter needs beyond cfg/logger. metrics
// is optional: a nil value skips the /metrics route and every
// instrumentation call downstream. Orchestrator is optional too: a
// nil value leaves EnqueueJob with no backpressure inline-execution
// fallback, so an unhealthy queue simply rejects the request.
type Deps struct {
	Queue        *queue.Queue
	Orchestrator *orchestrator.Orchestrator
	Hub          *sse.Hub
	Auth         *sse.Authenticator
	Commission   *commission.Engine
	Metrics      *observability.Metrics
}

// NewRouter returns a configured chi Router with the full middleware
// chain and every SSE/admin route mounted.
func NewRouter(cfg *config.Config, appLogger zerolog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(enginemw.CORSMiddleware(cfg.SSEOrigins()))
	r.Use(enginemw.SecurityHeadersMiddleware)
	r.Use(enginemw.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))

	timeoutMW := enginemw.NewTimeoutMiddleware(appLogger, cfg)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"detection-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		healthy := deps.Queue == nil || deps.Queue.Healthy()
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"ready","service":"detection-engine"}`))
	})

	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler().ServeHTTP)
	}

	if deps.Hub != nil && deps.Auth != nil {
		sseHandler := handler.NewSSEHandler(deps.Hub, deps.Auth, appLogger)
		r.Get("/stream", sseHandler.Stream)
		r.Get("/status", sseHandler.Status)
		r.Get("/sync-progress/{sync_id}", sseHandler.SyncProgress)
		r.Get("/detection-updates/{sync_id}", sseHandler.DetectionUpdates)
		r.Get("/financial-events", sseHandler.FinancialEvents)
		r.Get("/notifications", sseHandler.Notifications)
		r.Get("/connection-status", sseHandler.ConnectionStatus)
	}

	r.Group(func(r chi.Router) {
		r.Use(timeoutMW.Handler)

		if deps.Queue != nil {
			adminHandler := handler.NewAdminHandler(deps.Queue, deps.Orchestrator, deps.Metrics, appLogger)
			r.Post("/sync", adminHandler.EnqueueJob)
			r.Get("/queue-stats", adminHandler.QueueStats)
			r.Get("/queue-jobs", adminHandler.QueueJobs)
			r.Post("/queue-retry/{jobId}", adminHandler.QueueRetry)
		}

		if deps.Commission != nil {
			commissionHandler := handler.NewCommissionHandler(deps.Commission, appLogger)
			r.Post("/invoices", commissionHandler.GenerateInvoice)
			r.Post("/invoices/finalize", commissionHandler.FinalizeInvoice)
			r.Post("/invoices/recompute", commissionHandler.RecomputeInvoice)
		}
	})

	return r
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			reqID := w.Header().Get("X-Request-ID")
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", reqID).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")
		})
	}
}
