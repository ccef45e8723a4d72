package api

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/woundphoto/internal/analyzer"
	"github.com/your-org/woundphoto/internal/api/handlers"
	"github.com/your-org/woundphoto/internal/api/ws"
	"github.com/your-org/woundphoto/internal/auth"
	"github.com/your-org/woundphoto/internal/storage"
	"github.com/your-org/woundphoto/internal/upload"
)

type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	Pipeline     *upload.Pipeline
	Store        storage.PhotoStore
	Hub          *ws.Hub
	// ArmClassifier backs the unauthenticated arm injury demo.
	ArmClassifier analyzer.Analyzer
	// MediaRoot is served under /media; empty unless local storage is active.
	MediaRoot   string
	ReadyChecks []handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.ReadyChecks...)
	r.GET("/health", systemH.Health)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.MediaRoot != "" {
		r.Static("/media", cfg.MediaRoot)
	}

	armH := handlers.NewArmHandler(cfg.ArmClassifier)
	r.POST("/detect-arm-injury", armH.Detect)

	// Data endpoints (with auth)
	protected := r.Group("/")
	protected.Use(auth.APIKeyMiddleware(cfg.APIKey))

	photoH := handlers.NewPhotoHandler(cfg.Pipeline, cfg.Store)
	protected.POST("/photo/upload", photoH.Upload)
	protected.GET("/photo/:user_id/:day", photoH.ListForDay)
	protected.GET("/clinician/photos", photoH.ClinicianList)
	protected.GET("/clinician/ws", cfg.Hub.HandleWS)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, auth.HeaderName, requestIDHeader)
	if len(origins) == 0 || slices.Contains(origins, "*") {
		// Browsers reject credentials with a wildcard origin.
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
