package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanleyndaba/clario-detection-engine/commission"
	"github.com/stanleyndaba/clario-detection-engine/config"
	"github.com/stanleyndaba/clario-detection-engine/evidence"
	"github.com/stanleyndaba/clario-detection-engine/logger"
	"github.com/stanleyndaba/clario-detection-engine/observability"
	"github.com/stanleyndaba/clario-detection-engine/orchestrator"
	"github.com/stanleyndaba/clario-detection-engine/policywindow"
	"github.com/stanleyndaba/clario-detection-engine/queue"
	"github.com/stanleyndaba/clario-detection-engine/redisclient"
	"github.com/stanleyndaba/clario-detection-engine/router"
	"github.com/stanleyndaba/clario-detection-engine/rulecontext"
	"github.com/stanleyndaba/clario-detection-engine/rules"
	"github.com/stanleyndaba/clario-detection-engine/sse"
	"github.com/stanleyndaba/clario-detection-engine/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("detection engine starting")

	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis init failed — continuing without a queue health backstop")
		rc = nil
	} else if err := rc.Ping(); err != nil {
		log.Warn().Err(err).Msg("redis ping failed")
	} else {
		log.Info().Msg("redis connected")
	}

	st, err := store.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer st.Close()

	blobStore, err := newBlobStore(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("blob store init failed")
	}

	metrics := observability.NewMetrics()

	q := queue.New(queue.Config{
		BackpressureThreshold: cfg.BackpressureThreshold,
		MaxConcurrency:        cfg.MaxConcurrency,
		MaxAttempts:           cfg.MaxAttempts,
		StallTimeout:          cfg.StallTimeout,
	})
	if rc != nil {
		q = q.WithRedis(rc)
	}

	ruleCtxStore := rulecontext.NewStore(st, time.Minute)
	evidenceBuilder := evidence.NewBuilder(blobStore)
	tracker := policywindow.NewTracker(st)
	hub := sse.NewHub().WithMetrics(metrics)
	auth := sse.NewAuthenticator(cfg.SSESharedSecret, cfg.IsDevelopment())
	registry := rules.DefaultRegistry()

	orch := orchestrator.New(q, registry, ruleCtxStore, st, st, evidenceBuilder, tracker, hub, log, cfg.MaxConcurrency).
		WithMetrics(metrics)

	commissionEngine := commission.New(st, cfg.CommissionRate, cfg.DisputeWindow).WithMetrics(metrics)

	ctx, cancel := context.WithCancel(context.Background())
	go orch.Run(ctx)

	r := router.NewRouter(cfg, log, router.Deps{
		Queue:        q,
		Orchestrator: orch,
		Hub:          hub,
		Auth:         auth,
		Commission:   commissionEngine,
		Metrics:      metrics,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE connections are long-lived; per-request timeouts are applied selectively in router
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("detection engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	cancel()
	q.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("detection engine stopped gracefully")
	}
}

// newBlobStore builds the production S3 blob store, or an in-memory
// stand-in in development when no blob endpoint override is set —
// mirroring the teacher's pattern of degrading gracefully to a local
// stand-in for optional external dependencies rather than failing
// startup outright.
func newBlobStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (evidence.BlobStore, error) {
	if cfg.IsDevelopment() && cfg.BlobEndpoint == "" {
		log.Info().Msg("evidence blob store using in-memory stand-in (set EVIDENCE_BLOB_ENDPOINT for MinIO/LocalStack)")
		return evidence.NewMemoryBlobStore(), nil
	}
	return evidence.NewS3BlobStore(ctx, evidence.S3BlobStoreConfig{
		Bucket:   cfg.BlobBucket,
		Region:   cfg.BlobRegion,
		Endpoint: cfg.BlobEndpoint,
	})
}
