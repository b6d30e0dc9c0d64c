package routes

import (
	"github.com/gin-gonic/gin"

	"stocksignals/config"
	"stocksignals/controllers"
	"stocksignals/services/batch"
	"stocksignals/services/syncer"
	"stocksignals/store"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, st *store.Store, prices *syncer.PriceSyncer, orchestrator *batch.Orchestrator, cfg *config.Config) {
	// Initialize controllers
	stockController := controllers.NewStockController(st, prices)
	signalController := controllers.NewSignalController(st)
	batchController := controllers.NewBatchController(orchestrator, cfg)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Stock routes
		stocks := api.Group("/stocks")
		{
			stocks.GET("", stockController.GetStocks)
			stocks.GET("/:symbol", stockController.GetStock)
			stocks.GET("/:symbol/prices", stockController.GetStockPrices)
			stocks.GET("/:symbol/indicators", stockController.GetStockIndicators)
		}

		// Signal routes
		signals := api.Group("/signals")
		{
			signals.GET("", signalController.GetSignals)
		}

		// Batch routes
		batchGroup := api.Group("/batch")
		{
			batchGroup.POST("/run", batchController.RunBatch)
		}
	}
}
