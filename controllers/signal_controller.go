package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stocksignals/models"
	"stocksignals/store"
)

// SignalController handles derived signal queries
type SignalController struct {
	store *store.Store
}

// NewSignalController creates a new signal controller
func NewSignalController(st *store.Store) *SignalController {
	return &SignalController{store: st}
}

// GetSignals returns derived signals with optional filters
// GET /api/v1/signals?symbol=&category=&type=&code=&date=&from=&to=
func (sc *SignalController) GetSignals(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := sc.store.DB().Model(&models.Signal{})
	if symbol := c.Query("symbol"); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("signal_category = ?", category)
	}
	if sigType := c.Query("type"); sigType != "" {
		query = query.Where("signal_type = ?", sigType)
	}
	if code := c.Query("code"); code != "" {
		query = query.Where("signal_code = ?", code)
	}
	if date := c.Query("date"); date != "" {
		t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		query = query.Where("signal_date = ?", t)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date, expected YYYY-MM-DD"})
			return
		}
		query = query.Where("signal_date >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date, expected YYYY-MM-DD"})
			return
		}
		query = query.Where("signal_date <= ?", t)
	}

	var total int64
	query.Count(&total)

	var signals []models.Signal
	if err := query.Order("signal_date DESC, symbol ASC").Limit(limit).Offset(offset).Find(&signals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch signals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": signals,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}
