// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/app"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// Metrics records request telemetry; nil disables it.
	Metrics middleware.RequestRecorder

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": "route not found"})
	})

	healthHandler := handlers.NewHealthHandler(cfg.Services.Storage, cfg.Services.Driver)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	if cfg.Services.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Services.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerProductRoutes(v1, base, cfg.Services)
	registerDocumentRoutes(v1, base, cfg.Services)
	registerLedgerRoutes(v1, base, cfg.Services)
	registerReportRoutes(v1, base, cfg.Services)
	registerAuditRoutes(v1, base, cfg.Services)

	return router
}

func registerProductRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	h := handlers.NewProductHandler(base, s.Products)
	products := rg.Group("/products")
	products.GET("", h.List)
	products.POST("", h.Create)
	products.GET("/:id", h.Get)
	products.PATCH("/:id", h.Update)
	products.DELETE("/:id", h.Delete)
}

func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	h := handlers.NewDocumentHandler(base, s.Documents, s.Engine)
	docs := rg.Group("/documents")
	docs.GET("", h.List)
	docs.POST("", h.Create)
	docs.GET("/:id", h.Get)
	docs.DELETE("/:id", h.Delete)
	docs.POST("/:id/items", h.AddItem)
	docs.DELETE("/:id/items/:itemId", h.RemoveItem)
	docs.POST("/:id/status", h.SetStatus)
	docs.POST("/:id/cancel", h.Cancel)
	docs.POST("/:id/validate", h.Validate)
}

func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	h := handlers.NewLedgerHandler(base, s.Ledger, s.Products)
	rg.GET("/ledger", h.List)
	rg.GET("/ledger/export.xlsx", h.Export)
}

func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	h := handlers.NewReportsHandler(base, s.Reports)
	reports := rg.Group("/reports")
	reports.GET("/dashboard", h.Dashboard)
	reports.GET("/low-stock", h.LowStock)
	reports.GET("/reconciliation", h.Reconciliation)
}

func registerAuditRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	h := handlers.NewAuditHandler(base, s.Audit)
	rg.GET("/audit/:entityType/:id", h.History)
}
