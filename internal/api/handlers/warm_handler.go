package handlers

import (
	"net/http"

	"github.com/andresuchdata/autopo-py/depletion/internal/pipeline"
	"github.com/gin-gonic/gin"
)

type WarmHandler struct {
	warmer *pipeline.Warmer
}

func NewWarmHandler(warmer *pipeline.Warmer) *WarmHandler {
	return &WarmHandler{warmer: warmer}
}

// PostWarm rebuilds today's cached report of every product.
func (h *WarmHandler) PostWarm(c *gin.Context) {
	result, err := h.warmer.WarmAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to warm reports", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
