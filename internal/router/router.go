package router

import (
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/clock"
	"github.com/augustodevcode/bidexpert-engine/internal/config"
	"github.com/augustodevcode/bidexpert-engine/internal/handler"
	"github.com/augustodevcode/bidexpert-engine/internal/infra"
	"github.com/augustodevcode/bidexpert-engine/internal/lock"
	"github.com/augustodevcode/bidexpert-engine/internal/middleware"
	"github.com/augustodevcode/bidexpert-engine/internal/notifier"
	"github.com/augustodevcode/bidexpert-engine/internal/repository"
	"github.com/augustodevcode/bidexpert-engine/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// The keyed lock registry and notifier come from the caller so the finalize
// cron shares the same per-lot serialization as the HTTP path.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, locks *lock.Keyed, notif notifier.Notifier, eventCB *infra.CircuitBreaker) *gin.Engine {
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

	clk := clock.System()

	// ── Repositories ─────────────────────────────────────────────────────────
	lotRepo := repository.NewLotRepository(db)
	bidRepo := repository.NewBidRepository(db)
	autoBidRepo := repository.NewAutoBidRepository(db)
	auctionRepo := repository.NewAuctionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	biddingSvc := service.NewBiddingService(lotRepo, bidRepo, autoBidRepo, auctionRepo, locks, clk, notif, service.BiddingConfig{
		LockWait:           time.Duration(cfg.LockWaitMS) * time.Millisecond,
		HistoryMaxLimit:    cfg.BidHistoryMaxLimit,
		SoftCloseWindow:    time.Duration(cfg.SoftCloseWindowSeconds) * time.Second,
		SoftCloseExtension: time.Duration(cfg.SoftCloseExtensionSeconds) * time.Second,
	})
	lotSvc := service.NewLotService(lotRepo, bidRepo, autoBidRepo, auctionRepo, locks, clk, notif,
		time.Duration(cfg.LockWaitMS)*time.Millisecond)
	stageSvc := service.NewStageService(auctionRepo, clk)

	// ── Handlers ─────────────────────────────────────────────────────────────
	bidsH := handler.NewBidsHandler(biddingSvc)
	lotsH := handler.NewLotsHandler(lotSvc)
	auctionsH := handler.NewAuctionsHandler(stageSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, eventCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Read side — no auth required (live widgets poll these)
	r.GET("/v1/lots/:id", lotsH.Get)
	r.GET("/v1/lots/:id/bids", bidsH.History)
	r.GET("/v1/auctions/:id/active-stage", auctionsH.ActiveStage)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Bidders
		v1.POST("/bids", middleware.RequireRole("bidder", "admin"), middleware.BidRateLimiter(), bidsH.PlaceBid)
		v1.POST("/lots/:id/auto-bid", middleware.RequireRole("bidder", "admin"), bidsH.SetAutoBid)

		// Operators
		lots := v1.Group("/lots", middleware.RequireRole("auctioneer", "admin"))
		{
			lots.POST("/:id/finalize", lotsH.Finalize)
			lots.POST("/:id/suspend", lotsH.Suspend)
			lots.POST("/:id/cancel", lotsH.Cancel)
			lots.POST("/:id/relist", lotsH.Relist)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
