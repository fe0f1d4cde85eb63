// Command runtime is the demo composition root: it wires together the
// schema builder, storage adapter, event bus/store, webhook system, and
// plugin host into a single process and exposes a minimal health/status
// HTTP surface. Grounded in the teacher's cmd/main.go env-driven config
// and graceful-shutdown idiom, with the Kubernetes/websocket/gin wiring
// dropped since this runtime has no HTTP API surface to serve (see
// spec.md's Non-goals) beyond the demo's own health endpoint.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/authcore/runtime/internal/config"
	"github.com/authcore/runtime/internal/events"
	"github.com/authcore/runtime/internal/logger"
	"github.com/authcore/runtime/internal/plugins"
	"github.com/authcore/runtime/internal/plugins/jwtplugin"
	"github.com/authcore/runtime/internal/schema"
	"github.com/authcore/runtime/internal/storage"
	"github.com/authcore/runtime/internal/webhooks"
	"github.com/robfig/cron/v3"
)

func main() {
	port := getEnv("RUNTIME_PORT", "8000")
	logLevel := getEnv("LOG_LEVEL", "info")
	prettyLogs := getEnv("LOG_PRETTY", "false") == "true"
	natsURL := os.Getenv("NATS_URL")

	logger.Initialize(logLevel, prettyLogs)
	log := logger.GetLogger()

	cfg := config.Default()
	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", configFile).Msg("failed to load config file")
		}
		cfg = loaded
	}

	log.Info().Msg("composing schema")
	builder := schema.NewBuilderWithCore()
	coreSchema := builder.Build()

	store := storage.NewMemoryAdapter()
	ctx := context.Background()
	if err := store.Migrate(ctx, coreSchema.Models); err != nil {
		log.Fatal().Err(err).Msg("failed to apply core schema")
	}

	log.Info().Msg("starting event subsystem")
	bus := events.NewBusWithHistory(cfg.EventHistorySize)
	bus.Use(events.LoggingMiddleware{})
	bus.Use(events.CorrelationMiddleware{})
	eventStore := events.NewMemoryEventStore()
	bus.Subscribe("*", func(e events.Event) error {
		_, err := eventStore.Append(e.Type.Namespace+"."+e.Type.Name, e)
		return err
	})

	dlqStorage := events.NewInMemoryDLQStorage()
	dlq := events.NewDeadLetterQueue(dlqStorage, events.DLQConfig{
		MaxRetries:     cfg.DLQ.MaxRetries,
		AutoRetry:      cfg.DLQ.AutoRetry,
		RetryDelaySecs: int(cfg.DLQ.RetryDelay.Seconds()),
	})

	natsBridge, err := events.NewNATSBridge(events.NATSConfig{URL: natsURL}, bus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize nats bridge")
	}
	if unsubscribe, err := natsBridge.Listen(); err != nil {
		log.Fatal().Err(err).Msg("failed to start nats bridge listener")
	} else {
		defer unsubscribe()
	}
	defer natsBridge.Close()

	log.Info().Msg("starting webhook delivery engine")
	webhookStorage := webhooks.NewInMemoryWebhookStorage()
	webhookQueue := webhooks.NewInMemoryQueue()
	webhookSystem := webhooks.NewWebhookSystem(webhookStorage, webhookQueue, dlq, webhooks.SystemConfig{
		Retry: webhooks.NewExponentialBackoff(),
		RateLimit: webhooks.RateLimitConfig{
			Capacity:      cfg.Webhook.RateLimit.Capacity,
			RefillPerSec:  cfg.Webhook.RateLimit.RefillPerSec,
			MaxConcurrent: cfg.Webhook.RateLimit.MaxConcurrent,
		},
		Breaker: webhooks.BreakerConfig{
			FailureThreshold: cfg.Webhook.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Webhook.Breaker.SuccessThreshold,
			OpenTimeout:      cfg.Webhook.Breaker.OpenTimeout,
			MaxHalfOpenCalls: 1,
		},
		Workers:    cfg.Webhook.Workers,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	})
	bus.Subscribe("*", webhookSystem.OnEvent)
	webhookSystem.Start(ctx)
	defer webhookSystem.Shutdown()

	log.Info().Msg("scheduling dead letter queue sweep")
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.DLQ.SweepCron, func() {
		cutoff := time.Now().UTC().Add(-cfg.DLQ.RetentionPeriod)
		removed := dlq.PurgeOlderThan(cutoff)
		if removed > 0 {
			logger.Events().Info().Int("removed", removed).Msg("purged stale dead letters")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule dead letter sweep")
	}
	sweeper.Start()
	defer sweeper.Stop()

	log.Info().Msg("assembling plugin host")
	host := plugins.NewHost()
	jwtSecret := getEnv("JWT_SECRET", "development-only-secret-change-me")
	jwtTTLHours := getEnvInt("JWT_TTL_HOURS", 24)
	host.Register(jwtplugin.New(jwtSecret, "authcore-runtime", time.Duration(jwtTTLHours)*time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		n, _ := webhookQueue.Len(r.Context())
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready, pending_webhook_jobs=" + strconv.Itoa(n)))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		log.Info().Str("port", port).Msg("runtime listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}
	_ = host // referenced once signin/signup flows are wired by a consuming application
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
