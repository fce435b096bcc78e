package alerts

import (
	"github.com/gin-gonic/gin"

	"github.com/neurometric/backend/pkg/response"
)

// Handler exposes the in-memory alert window over REST for HR dashboards.
type Handler struct {
	log *Log
}

// NewHandler creates the alerts handler.
func NewHandler(log *Log) *Handler {
	return &Handler{log: log}
}

// Recent returns the retained alerts, newest first.
// GET /api/alerts/recent
func (h *Handler) Recent(c *gin.Context) {
	response.OK(c, h.log.Recent())
}

// Resolve marks one alert as handled.
// PATCH /api/alerts/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	id := c.Param("id")
	if !h.log.Resolve(id) {
		response.NotFound(c, "alert not found")
		return
	}
	response.OK(c, gin.H{"resolved": true})
}
