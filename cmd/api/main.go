package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/woundphoto/internal/analyzer"
	"github.com/your-org/woundphoto/internal/api"
	"github.com/your-org/woundphoto/internal/api/handlers"
	"github.com/your-org/woundphoto/internal/api/ws"
	"github.com/your-org/woundphoto/internal/config"
	"github.com/your-org/woundphoto/internal/media"
	"github.com/your-org/woundphoto/internal/observability"
	"github.com/your-org/woundphoto/internal/queue"
	"github.com/your-org/woundphoto/internal/storage"
	"github.com/your-org/woundphoto/internal/upload"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.Info("starting photo API service",
		"name", cfg.App.Name,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
		"engine", cfg.Analyzer.Engine,
		"database", cfg.Database.Driver,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Record store
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("open record store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	checks := []handlers.Check{{Name: string(cfg.Database.Driver), Ping: store.Ping}}

	// Media backend
	backend, err := media.New(cfg)
	if err != nil {
		slog.Error("init media backend", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	var mediaRoot string
	switch b := backend.(type) {
	case *media.LocalBackend:
		mediaRoot = b.Root()
		if cfg.Storage.BaseURL == "" {
			slog.Warn("PHOTO_BASE_URL is not set; photo URLs will be filesystem paths")
		}
	case *media.MinIOBackend:
		if err := b.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		checks = append(checks, handlers.Check{Name: "minio", Ping: b.Ping})
	}

	// Classification. The model loads lazily on first use and is shared by
	// the upload analyzer and the arm injury endpoint.
	defer func() {
		if ort.IsInitialized() {
			_ = ort.DestroyEnvironment()
		}
	}()
	cache := analyzer.NewModelCache(analyzer.LoadCLIP(analyzer.CLIPConfigFrom(cfg.Analyzer)))
	defer cache.Close()

	photoAnalyzer, err := analyzer.FromConfig(cfg.Analyzer.Engine, cache)
	if err != nil {
		slog.Error("init analyzer", "error", err)
		os.Exit(1)
	}
	armClassifier, err := analyzer.NewZeroShot(cache, analyzer.ArmLabels, analyzer.ArmPrompts)
	if err != nil {
		slog.Error("init arm classifier", "error", err)
		os.Exit(1)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Upload events go through NATS when configured, otherwise straight to the hub.
	var events upload.EventPublisher = hub
	if cfg.NATS.URL != "" {
		if producer, consumer, err := startEventBus(ctx, cfg.NATS.URL, hub); err != nil {
			slog.Warn("event bus unavailable, publishing to websocket hub directly", "error", err)
		} else {
			defer producer.Close()
			defer consumer.Close()
			events = producer
			checks = append(checks, handlers.Check{Name: "nats", Ping: func(context.Context) error { return producer.Ping() }})
		}
	}

	pipeline := upload.NewPipeline(photoAnalyzer, backend, store, events, cfg.Storage.MaxUploadBytes())

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:        cfg.Server.APIKey,
		AllowOrigins:  cfg.Server.Origins(),
		Pipeline:      pipeline,
		Store:         store,
		Hub:           hub,
		ArmClassifier: armClassifier,
		MediaRoot:     mediaRoot,
		ReadyChecks:   checks,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}

func startEventBus(ctx context.Context, natsURL string, hub *ws.Hub) (*queue.Producer, *queue.Consumer, error) {
	producer, err := queue.NewProducer(natsURL)
	if err != nil {
		return nil, nil, err
	}
	if err := producer.EnsureStream(ctx); err != nil {
		producer.Close()
		return nil, nil, err
	}

	consumer, err := queue.NewConsumer(natsURL)
	if err != nil {
		producer.Close()
		return nil, nil, err
	}
	if err := consumer.ConsumePhotoEvents(ctx, "api-photos", hub.HandleBusEvent); err != nil {
		producer.Close()
		consumer.Close()
		return nil, nil, err
	}
	return producer, consumer, nil
}
