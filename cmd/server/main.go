package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facevault/internal/analysis"
	"github.com/your-org/facevault/internal/api"
	"github.com/your-org/facevault/internal/api/ws"
	"github.com/your-org/facevault/internal/config"
	"github.com/your-org/facevault/internal/intake"
	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/observability"
	"github.com/your-org/facevault/internal/pipeline"
	"github.com/your-org/facevault/internal/queue"
	"github.com/your-org/facevault/internal/registry"
	"github.com/your-org/facevault/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facevault server", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx, cfg.Analysis.EmbeddingDim); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBuckets(ctx); err != nil {
		slog.Warn("ensure minio buckets", "error", err)
	}

	// Face analysis: probed once, optionally re-probed in the background.
	analyzer := analysis.NewClient(cfg.Analysis.URL, cfg.Analysis.Timeout)
	slog.Info("face analysis availability", "url", cfg.Analysis.URL, "state", analyzer.CheckAvailability(ctx).String())
	if cfg.Analysis.RecheckInterval > 0 {
		go recheckAvailability(ctx, analyzer, cfg.Analysis.RecheckInterval)
	}

	gateway := storage.NewGateway(minioStore, db, cfg.MinIO.PhotosBucket, cfg.MinIO.CropsBucket)
	orchestrator := pipeline.New(analyzer, gateway, pipeline.WithEmbeddingDim(cfg.Analysis.EmbeddingDim))

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	notifiers := intake.MultiNotifier{hub}
	var natsPing func() error

	// NATS is optional: without it only HTTP captures are accepted.
	var producer *queue.Producer
	if cfg.NATS.URL != "" {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		notifiers = append(notifiers, producer)
		natsPing = producer.Ping
	}

	reg := registry.New()
	controller := intake.NewController(reg, orchestrator, notifiers)

	if producer != nil {
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create capture consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		err = consumer.ConsumeCaptures(ctx, cfg.Intake.CaptureConsumer, func(ctx context.Context, evt models.CaptureEvent) error {
			_, err := controller.HandleCapture(ctx, evt.Photo())
			return err
		}, cfg.Intake.WorkerCount)
		if err != nil {
			slog.Warn("start capture consumer", "error", err)
		}

		// Periodically report queue depth
		go observability.PollGauge(ctx, 10*time.Second, observability.CaptureQueueDepth, func(ctx context.Context) (float64, error) {
			depth, err := producer.QueueDepth(ctx)
			return float64(depth), err
		})
	}

	go observability.PollGauge(ctx, 30*time.Second, observability.UnprocessedEmbeddings, func(ctx context.Context) (float64, error) {
		n, err := db.CountUnprocessedEmbeddings(ctx)
		return float64(n), err
	})

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		Records:  db,
		MinIO:    minioStore,
		NATS:     natsPing,
		Analysis: analyzer,
		Intake:   controller,
		Registry: reg,
		Hub:      hub,
	})

	// Start HTTP server. Captures are processed inside the request, so the
	// write timeout covers a full pipeline run.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

func recheckAvailability(ctx context.Context, c *analysis.Client, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckAvailability(ctx)
		}
	}
}
