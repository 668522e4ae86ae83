package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	service ListingServiceAPI
	started time.Time
}

func NewHealthController(s ListingServiceAPI) *HealthController {
	return &HealthController{service: s, started: time.Now()}
}

// Health reports liveness plus storage connectivity. It answers 200 even when
// the backend is unreachable; the body says so.
func (h *HealthController) Health(c *gin.Context) {
	status := h.service.Health(c.Request.Context())
	storage := gin.H{
		"backend":   status.Backend,
		"connected": status.Connected,
	}
	if status.Err != nil {
		storage["error"] = status.Err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "OK",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"uptime":     time.Since(h.started).Seconds(),
		"storage":    storage,
		"imageStore": status.ImageStore,
	})
}
