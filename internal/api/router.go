package api

import (
	"net/http"
	"time"

	"coupon-system/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Services are the core components the HTTP layer drives
type Services struct {
	Pool       *service.PoolManager
	Assignment *service.AssignmentEngine
	Redemption *service.RedemptionCoordinator
	Ledger     *service.Ledger
}

// NewRouter builds the gin engine with every route registered.
// lockTTL is applied to every lock request.
func NewRouter(svc Services, lockTTL time.Duration, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), tracing(), requestLogger(log))

	h := &handler{svc: svc, lockTTL: lockTTL, log: log.With().Str("component", "api").Logger()}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/coupons", h.createBook)
		api.POST("/coupons/codes", h.uploadCodes)
		api.POST("/coupons/random-codes", h.generateCodes)
		api.POST("/coupons/assign", h.assignRandom)
		api.POST("/coupons/assign/:code", h.assignSpecific)
		api.POST("/coupons/lock/:code", h.lock)
		api.POST("/coupons/unlock/:code", h.unlock)
		api.POST("/coupons/redeem/:code", h.redeem)
		api.GET("/coupons/user/:id", h.userCoupons)

		api.GET("/coupon-books/:id", h.getBook)
		api.DELETE("/coupon-books/:id", h.deleteBook)
		api.POST("/coupon-books/:id/restore", h.restoreBook)

		api.GET("/generation-jobs/:id", h.getJob)
		api.GET("/transactions", h.listTransactions)
	}

	return router
}
