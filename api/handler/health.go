package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagepipe/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports run utilisation; status is "saturated" while every slot is taken.
func Health(runs *Runs, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := runs.Stats()

		status := "healthy"
		if stats.Active >= int64(stats.MaxConcurrent) {
			status = "saturated"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Runs:    stats,
			Version: Version,
		})
	}
}
