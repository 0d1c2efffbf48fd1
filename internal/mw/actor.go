package mw

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const actorIDKey = "actor_id"

// RequireActor rejects requests without a positive numeric actor id in header
// and stores the id for handlers.
func RequireActor(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(header))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": header + " header with a positive actor id is required"})
			return
		}
		c.Set(actorIDKey, id)
		c.Next()
	}
}

// ActorID returns the id stored by RequireActor, or 0.
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(actorIDKey)
}
