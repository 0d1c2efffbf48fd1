package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"custody-schedule-backend/internal/capacity"
	"custody-schedule-backend/internal/conflict"
	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/scheduling"
	"custody-schedule-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *scheduling.Service
	subs    store.SubscriptionStore
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(svc *scheduling.Service, subs store.SubscriptionStore, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		svc:     svc,
		subs:    subs,
		webpush: webpushOptions,
	}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, interval.ErrInvalidInterval), errors.Is(err, scheduling.ErrInvalidActivity):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, capacity.ErrUnknownSlot):
		status = http.StatusNotFound
	case errors.Is(err, conflict.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, capacity.ErrCapacityExhausted):
		status = http.StatusConflict
		msg = "slot unavailable"
	default:
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// idParam reads a positive integer path parameter, answering 400 otherwise.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
