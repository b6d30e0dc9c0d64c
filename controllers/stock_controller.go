package controllers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stocksignals/models"
	"stocksignals/services/analysis"
	"stocksignals/services/syncer"
	"stocksignals/store"
)

// StockController handles stock and price requests
type StockController struct {
	store  *store.Store
	prices *syncer.PriceSyncer
}

// NewStockController creates a new stock controller
func NewStockController(st *store.Store, prices *syncer.PriceSyncer) *StockController {
	return &StockController{store: st, prices: prices}
}

// GetStocks returns the tracked universe
// GET /api/v1/stocks
func (sc *StockController) GetStocks(c *gin.Context) {
	sector := c.Query("sector")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := sc.store.DB().Model(&models.Stock{})
	if sector != "" {
		query = query.Where("sector = ?", sector)
	}

	var total int64
	query.Count(&total)

	var stocks []models.Stock
	if err := query.Order("symbol ASC").Limit(limit).Offset(offset).Find(&stocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stocks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stocks,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetStock returns a single stock by symbol
// GET /api/v1/stocks/:symbol
func (sc *StockController) GetStock(c *gin.Context) {
	symbol := c.Param("symbol")

	var stock models.Stock
	if err := sc.store.DB().Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stock})
}

// GetStockPrices returns the synced daily price window, newest first.
// The freshness gate decides whether a provider round-trip happens.
// GET /api/v1/stocks/:symbol/prices
func (sc *StockController) GetStockPrices(c *gin.Context) {
	symbol := c.Param("symbol")

	prices, err := sc.prices.EnsureFresh(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to sync prices", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": prices, "count": len(prices)})
}

// GetStockIndicators computes the current indicator values on demand
// GET /api/v1/stocks/:symbol/indicators
func (sc *StockController) GetStockIndicators(c *gin.Context) {
	symbol := c.Param("symbol")

	prices, err := sc.prices.EnsureFresh(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to sync prices", "detail": err.Error()})
		return
	}
	if len(prices) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No price history"})
		return
	}

	// newest first in storage, oldest first for the math
	closes := make([]float64, len(prices))
	for i := range prices {
		closes[len(prices)-1-i] = prices[i].CloseFloat()
	}

	indicators := gin.H{
		"symbol": symbol,
		"date":   prices[0].Date.Format("2006-01-02"),
		"close":  round2(closes[len(closes)-1]),
	}
	for _, period := range []int{20, 50, 200} {
		if sma := analysis.SMASeries(closes, period); sma != nil {
			indicators["sma"+strconv.Itoa(period)] = round2(sma[len(sma)-1])
		}
	}
	for _, period := range []int{12, 26} {
		if ema := analysis.EMASeries(closes, period); ema != nil {
			indicators["ema"+strconv.Itoa(period)] = round2(ema[len(ema)-1])
		}
	}
	if rsi := analysis.RSISeries(closes, 14); rsi != nil {
		indicators["rsi14"] = round2(rsi[len(rsi)-1])
	}
	if macd := analysis.MACD(closes, 12, 26, 9); macd != nil {
		indicators["macd"] = round2(macd.Line[len(macd.Line)-1])
		indicators["macd_signal"] = round2(macd.SignalLine[len(macd.SignalLine)-1])
	}

	c.JSON(http.StatusOK, gin.H{"data": indicators})
}

// round2 rounds to two decimals for presentation only; derivation uses the
// unrounded series.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
