package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"custody-schedule-backend/internal/mw"
	"custody-schedule-backend/internal/scheduling"
)

// CreateActivity handles POST /api/activities.
func (h *Handler) CreateActivity(c *gin.Context) {
	var req scheduling.ActivityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.CreateActivity(c.Request.Context(), req, mw.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetActivity handles GET /api/activities/:id.
func (h *Handler) GetActivity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Activity(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateActivity handles PUT /api/activities/:id.
func (h *Handler) UpdateActivity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req scheduling.ActivityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.UpdateActivity(c.Request.Context(), id, req, mw.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CancelActivity handles POST /api/activities/:id/cancel.
func (h *Handler) CancelActivity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.CancelActivity(c.Request.Context(), id, mw.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteActivity handles DELETE /api/activities/:id.
func (h *Handler) DeleteActivity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.DeleteActivity(c.Request.Context(), id, mw.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retired_conflicts": res.Retired})
}

// GetActivityConflicts handles GET /api/activities/:id/conflicts.
func (h *Handler) GetActivityConflicts(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conflicts, err := h.svc.ActivityConflicts(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
}

// DetectConflicts handles POST /api/activities/:id/detect.
func (h *Handler) DetectConflicts(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Redetect(c.Request.Context(), id, mw.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
