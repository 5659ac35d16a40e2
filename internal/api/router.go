package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facevault/internal/api/handlers"
	"github.com/your-org/facevault/internal/api/ws"
	"github.com/your-org/facevault/internal/auth"
	"github.com/your-org/facevault/internal/registry"
)

type RouterConfig struct {
	APIKey   string
	DB       handlers.Pinger
	Records  handlers.RecordLister
	MinIO    handlers.Pinger
	NATS     func() error
	Analysis handlers.AnalysisStatus
	Intake   handlers.CaptureIntake
	Registry *registry.Registry
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())
	r.MaxMultipartMemory = handlers.MaxImageBytes

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.NATS, cfg.Analysis)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Captures
	captureH := handlers.NewCaptureHandler(cfg.Intake)
	v1.POST("/captures", captureH.Create)

	// Photos (in-memory registry)
	photoH := handlers.NewPhotoHandler(cfg.Registry)
	v1.GET("/photos", photoH.List)
	v1.GET("/photos/:id", photoH.Get)

	// Persisted records
	recordH := handlers.NewRecordHandler(cfg.Records)
	v1.GET("/records", recordH.List)

	return r
}
