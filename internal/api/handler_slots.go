package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"custody-schedule-backend/internal/mw"
)

// GetSlot handles GET /api/slots/:key.
func (h *Handler) GetSlot(c *gin.Context) {
	key := c.Param("key")
	remaining, err := h.svc.RemainingCapacity(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot_key": key, "remaining": remaining})
}

// ReserveSlot handles POST /api/slots/:key/reserve.
func (h *Handler) ReserveSlot(c *gin.Context) {
	key := c.Param("key")
	if err := h.svc.ReserveSlot(c.Request.Context(), key, mw.ActorID(c)); err != nil {
		respondError(c, err)
		return
	}
	h.GetSlot(c)
}

// ReleaseSlot handles POST /api/slots/:key/release.
func (h *Handler) ReleaseSlot(c *gin.Context) {
	key := c.Param("key")
	if err := h.svc.ReleaseSlot(c.Request.Context(), key, mw.ActorID(c)); err != nil {
		respondError(c, err)
		return
	}
	h.GetSlot(c)
}
