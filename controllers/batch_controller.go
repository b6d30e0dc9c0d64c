package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stocksignals/config"
	"stocksignals/services/batch"
)

// BatchController triggers batch derivation runs
type BatchController struct {
	orchestrator *batch.Orchestrator
	cfg          *config.Config
}

// NewBatchController creates a new batch controller
func NewBatchController(orchestrator *batch.Orchestrator, cfg *config.Config) *BatchController {
	return &BatchController{orchestrator: orchestrator, cfg: cfg}
}

type runBatchRequest struct {
	BatchIndex int `json:"batch_index"`
	BatchSize  int `json:"batch_size"`
}

// RunBatch runs one batch synchronously and returns the full report.
// Accepts batch_index/batch_size as query parameters or a JSON body.
// POST /api/v1/batch/run
func (bc *BatchController) RunBatch(c *gin.Context) {
	req := runBatchRequest{
		BatchIndex: queryInt(c, "batch_index", 0),
		BatchSize:  queryInt(c, "batch_size", 0),
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	if req.BatchSize <= 0 {
		req.BatchSize = bc.cfg.BatchSize
	}
	if req.BatchIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_index must not be negative"})
		return
	}

	report, err := bc.orchestrator.Run(c.Request.Context(), req.BatchIndex, req.BatchSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Batch run failed", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	value := c.Query(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
