package router

import (
	"time"

	"numera/internal/config"
	"numera/internal/handler"
	"numera/internal/infra"
	"numera/internal/middleware"
	"numera/internal/repository"
	"numera/internal/service"
	"numera/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, ledgerCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	docRepo := repository.NewDocumentRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	ledgerSvc := service.NewLedgerService(ledgerRepo, ledgerCB)
	certSvc := service.NewCertificationService(docRepo, seriesRepo, ledgerRepo, ledgerSvc, dispatcher)
	seriesSvc := service.NewSeriesService(seriesRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	documentsH := handler.NewDocumentsHandler(certSvc)
	seriesH := handler.NewSeriesHandler(seriesSvc)
	ledgersH := handler.NewLedgersHandler(ledgerSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(db, rdb, ledgerCB))

	v1 := r.Group("/v1")
	{
		docs := v1.Group("/documents")
		{
			docs.POST("/certify", documentsH.Certify)
			docs.GET("", documentsH.List)
			docs.GET("/:id", documentsH.Get)
			docs.POST("/:id/cancel", documentsH.Cancel)
			docs.POST("/:id/liquidate", documentsH.Liquidate)
			docs.GET("/:id/effects", documentsH.Effects)
		}

		series := v1.Group("/series")
		{
			series.POST("", seriesH.Create)
			series.GET("", seriesH.List)
			series.GET("/:id", seriesH.Get)
			series.GET("/:id/counters", seriesH.Counters)
		}

		v1.GET("/registers/:id/ledger", ledgersH.RegisterLedger)
		v1.GET("/products/:id/stock-ledger", ledgersH.StockLedger)
	}

	return r
}
