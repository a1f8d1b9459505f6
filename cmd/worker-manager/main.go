// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"asset-workers/internal/assets"
	"asset-workers/internal/common/config"
	"asset-workers/internal/common/database"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/common/observability"
	"asset-workers/internal/names"
	"asset-workers/internal/pricing"
	"asset-workers/internal/queue"
	"asset-workers/internal/sources"
	"asset-workers/internal/vector"
	"asset-workers/internal/verify"

	eb "asset-workers/internal/workers/expansion/expand-batch"
	ve "asset-workers/internal/workers/verification/verify-entity"
	veb "asset-workers/internal/workers/verification/verify-entity-batch"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	index := vector.NewPineconeIndex(cfg.Pinecone)
	embedder := vector.NewOpenAIEmbedder(cfg.OpenAI)
	corpus := vector.NewClient(index, embedder, log)

	superhero := sources.NewSuperheroClient(cfg.SuperheroAPI, log)
	marvel := sources.NewMarvelClient(cfg.MarvelAPI, log)

	zapLog.Info("All external service clients initialized")

	// --- Domain Services ---
	canon := names.NewCanonicalizer()
	engine := pricing.NewEngine(log)
	heuristics := pricing.NewHeuristics(cfg.Pricing.KeyAppearanceRatio)
	transformer := assets.NewTransformer(canon, engine, heuristics, log)
	store := assets.NewStore(pg, log)
	verifier := verify.NewService(pg, canon, superhero, marvel, cfg.Verification.FreshnessHours, log)

	// --- Job Registry & Queue ---
	registry := queue.NewRegistry()
	jobs := queue.New(redis.GetClient(), registry, cfg.Queue, log)

	expandHandler, err := eb.NewHandler(eb.HandlerOptions{
		AppConfig:   cfg,
		Corpus:      corpus,
		Transformer: transformer,
		Store:       store,
		Logger:      log,
	})
	if err != nil {
		zapLog.Fatal("failed to create expand-batch handler", zap.Error(err))
	}

	verifyHandler, err := ve.NewHandler(ve.HandlerOptions{
		AppConfig: cfg,
		Service:   verifier,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create verify-entity handler", zap.Error(err))
	}

	verifyBatchHandler, err := veb.NewHandler(veb.HandlerOptions{
		AppConfig: cfg,
		DB:        pg,
		Jobs:      jobs,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create verify-entity-batch handler", zap.Error(err))
	}

	for _, registration := range []queue.Registration{
		expandHandler.Registration(),
		verifyHandler.Registration(),
		verifyBatchHandler.Registration(),
	} {
		if err := registry.Register(registration); err != nil {
			zapLog.Fatal("job registration failed", zap.Error(err), zap.String("jobType", registration.JobType))
		}
	}
	zapLog.Info("All job types registered successfully")

	// --- Orchestrator ---
	orchestrator := queue.NewOrchestrator(jobs, registry, cfg.Queue, cfg.Workers, log)
	if err := orchestrator.Start(ctx); err != nil {
		zapLog.Fatal("orchestrator startup failed", zap.Error(err))
	}

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "postgres unavailable"})
				return
			}
			if err := redis.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "redis unavailable"})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Queue.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Orchestrator shutdown incomplete", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}
