package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	root string
}

// NewHealthHandler creates a new health handler that reports on the
// transcripts directory at root.
func NewHealthHandler(root string) *HealthHandler {
	return &HealthHandler{root: root}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	if info, err := os.Stat(h.root); err != nil || !info.IsDir() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "transcripts directory is not readable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
