// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dealflow-workers/internal/common/aws"
	"dealflow-workers/internal/common/camunda"
	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/common/database"
	httpclient "dealflow-workers/internal/common/http"
	"dealflow-workers/internal/common/listings"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/narrative"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/common/zoho"
)

// collaborators are the shared clients handed to worker constructors.
// Optional integrations stay nil when disabled or unreachable.
type collaborators struct {
	pg        *database.PostgresClient
	redis     *database.RedisClient
	es        *database.ElasticsearchClient
	store     listings.Store
	generator narrative.Generator
	crm       *zoho.CRMClient
	ses       *aws.SESClient
	sns       *aws.SNSClient
	chat      *httpclient.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.MustNew(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(observability.Config{
		ServiceName: cfg.Observability.ServiceName,
		SampleRatio: cfg.Observability.TraceSampler,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	deps, err := connect(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("collaborator init failed", zap.Error(err))
	}
	defer deps.pg.Close()
	defer deps.redis.Close()

	workers, err := registerWorkers(cfg, zeebe, deps, log)
	if err != nil {
		zapLog.Fatal("worker registration failed", zap.Error(err))
	}
	zapLog.Info("Workers registered", zap.Int("count", countOpen(workers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
		Handler:           healthMux(zeebe, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	camunda.StopWorkers(workers, log)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// connect opens the data stores with retry and builds the optional
// integration clients.
func connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*collaborators, error) {
	deps := &collaborators{}

	// --- PostgreSQL ---
	err := database.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		deps.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return deps.pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	// --- Redis ---
	deps.redis = database.NewRedis(cfg.Database.Redis)
	err = database.RetryWithBackoff(ctx, deps.redis.Ping, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		return nil, err
	}
	log.Info("Redis connected successfully", nil)

	deps.store = listings.NewCachedStore(
		listings.NewPostgresStore(deps.pg.DB),
		deps.redis.Client,
		deps.redis.ListingTTL,
		log,
	)

	// --- Elasticsearch (optional) ---
	if cfg.Database.Elasticsearch.Enabled() {
		err = database.RetryWithBackoff(ctx, func(ctx context.Context) error {
			var err error
			deps.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return deps.es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		log.Info("Elasticsearch connected successfully", nil)
	}

	// --- External Service Clients ---
	if key := cfg.APIs.GenAI.APIKey; key != "" {
		gen, err := narrative.NewGeminiGenerator(ctx, key, cfg.APIs.GenAI.Model, cfg.APIs.GenAI.Temperature, log)
		if err != nil {
			log.Warn("narrative generator unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			deps.generator = gen
		}
	}

	if z := cfg.Integrations.Zoho; z.Enabled {
		deps.crm = zoho.NewCRMClient(z.BaseURL, z.AuthToken, 10*time.Second)
	}

	region := cfg.Integrations.AWS.Region
	if cfg.Integrations.AWS.SES.Enabled {
		from := cfg.Integrations.AWS.SES.FromEmail
		if from == "" {
			from = cfg.Notifications.Email.FromEmail
		}
		if deps.ses, err = aws.NewSESClient(ctx, region, from); err != nil {
			log.Warn("ses client unavailable", map[string]interface{}{"error": err.Error()})
		}
	}
	if cfg.Integrations.AWS.SNS.Enabled {
		if deps.sns, err = aws.NewSNSClient(ctx, region, cfg.Integrations.AWS.SNS.TopicARN); err != nil {
			log.Warn("sns client unavailable", map[string]interface{}{"error": err.Error()})
		}
	}
	if cfg.APIs.ChatWebhook.URL != "" {
		deps.chat = httpclient.NewClient(config.GetDuration(cfg.APIs.ChatWebhook.Timeout))
	}

	log.Info("All external service clients initialized", map[string]interface{}{
		"narrative": deps.generator != nil,
		"crm":       deps.crm != nil,
		"ses":       deps.ses != nil,
		"sns":       deps.sns != nil,
		"chat":      deps.chat != nil,
		"search":    deps.es != nil,
	})
	return deps, nil
}

func healthMux(zeebe *camunda.Client, deps *collaborators) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		for name, check := range map[string]func(context.Context) error{
			"zeebe":    zeebe.HealthCheck,
			"postgres": deps.pg.Ping,
			"redis":    deps.redis.Ping,
		} {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		if !ready {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", checks)
			return
		}
		writeStatus(w, http.StatusOK, "ready", checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func countOpen(workers []worker.JobWorker) int {
	n := 0
	for _, w := range workers {
		if w != nil {
			n++
		}
	}
	return n
}
