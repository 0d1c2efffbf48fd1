package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"custody-schedule-backend/internal/parse"
)

// GetAvailability handles GET /api/availability?dimension=facility:7&start=...&end=...&exclude=ID.
func (h *Handler) GetAvailability(c *gin.Context) {
	key, err := parse.ParseDimension(c.Query("dimension"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	iv, err := parse.ParseInterval(c.Query("start"), c.Query("end"))
	if err != nil {
		respondError(c, err)
		return
	}
	var exclude int64
	if raw := c.Query("exclude"); raw != "" {
		exclude, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || exclude < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exclude"})
			return
		}
	}

	available, err := h.svc.CheckAvailability(c.Request.Context(), key, iv, exclude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dimension": key.String(),
		"start":     iv.Start,
		"end":       iv.End,
		"available": available,
	})
}
