package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/samet0demir/enerji-piyasasi/config"
	"github.com/samet0demir/enerji-piyasasi/middleware"
	"github.com/samet0demir/enerji-piyasasi/services"
)

// Deps carries the components the routes are served from. Ingestor and
// Events may be nil.
type Deps struct {
	DB         *gorm.DB
	Store      *services.FactStore
	Ledger     *services.Ledger
	Aggregator *services.Aggregator
	Dashboard  *services.Dashboard
	Ingestor   *services.Ingestor
	Events     *services.EventBus
	Location   *time.Location
	CORS       config.CORSConfig
}

func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.SetupCORS(d.CORS))

	facts := NewFactsHandler(d.Dashboard, d.Store, d.Events)
	forecasts := NewForecastHandler(d.Dashboard, d.Ledger, d.Aggregator, d.Location)
	ingest := NewIngestHandler(d.Ingestor)
	health := NewHealthHandler(d.DB, d.Events)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/live", LiveWebSocket(d.Events))

	api := router.Group("/api")
	{
		api.GET("/health", health.Health)

		api.GET("/facts/:kind", facts.List)
		api.GET("/facts/:kind/latest", facts.Latest)
		api.PUT("/facts/:kind", facts.Ingest)
		api.POST("/facts/:kind", facts.Ingest)
		api.GET("/prices/:date/:hour", facts.PriceAt)

		api.POST("/forecasts", forecasts.Record)
		api.POST("/forecasts/resolve", forecasts.Resolve)
		api.GET("/forecast-history/:week_start", forecasts.History)
		api.GET("/weekly-performance", forecasts.WeeklyPerformance)

		api.GET("/weeks/available", forecasts.AvailableWeeks)
		api.POST("/weeks/recompute", forecasts.Recompute)
		api.GET("/weeks/:week_start/data", forecasts.WeekDetail)
		api.POST("/weeks/:week_start/resolve", forecasts.ResolveWeek)

		api.GET("/dashboard", forecasts.Dashboard)
		api.GET("/stats", forecasts.Stats)
		api.POST("/data/fetch", ingest.Fetch)

		api.GET("/latest", facts.LegacyLatestPrices)
		api.GET("/mcp/query", facts.LegacyQueryPrices)
		api.GET("/generation/recent", facts.LegacyRecentGeneration)
		api.GET("/consumption/recent", facts.LegacyRecentConsumption)
	}

	return router
}
