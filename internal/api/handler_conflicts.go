package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/mw"
	"custody-schedule-backend/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListConflicts handles GET /api/conflicts. Without a status filter it
// returns the unresolved triage queue.
func (h *Handler) ListConflicts(c *gin.Context) {
	filter := store.ConflictFilter{
		Group:    store.StatusGroup(c.DefaultQuery("status", string(store.GroupUnresolved))),
		Severity: model.Severity(c.Query("severity")),
		Type:     model.ConflictType(c.Query("type")),
		Limit:    defaultPageSize,
	}
	if _, err := filter.Group.Statuses(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity"})
		return
	}
	if filter.Type != "" && !filter.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown conflict type"})
		return
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return
		}
		*dst = n
	}
	if filter.Limit == 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if raw := c.Query("activity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity_id"})
			return
		}
		filter.ActivityID = id
	}

	views, err := h.svc.ListConflicts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": views})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// bindNotes reads an optional {"notes": "..."} body.
func bindNotes(c *gin.Context) (string, bool) {
	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return req.Notes, true
}

// AcknowledgeConflict handles POST /api/conflicts/:id/acknowledge.
func (h *Handler) AcknowledgeConflict(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	updated, err := h.svc.Acknowledge(c.Request.Context(), id, mw.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ResolveConflict handles POST /api/conflicts/:id/resolve.
func (h *Handler) ResolveConflict(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	notes, ok := bindNotes(c)
	if !ok {
		return
	}
	updated, err := h.svc.Resolve(c.Request.Context(), id, mw.ActorID(c), notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// IgnoreConflict handles POST /api/conflicts/:id/ignore.
func (h *Handler) IgnoreConflict(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	notes, ok := bindNotes(c)
	if !ok {
		return
	}
	updated, err := h.svc.Ignore(c.Request.Context(), id, mw.ActorID(c), notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
