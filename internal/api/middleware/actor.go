package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/tally/internal/logger"
)

// ActorHeader carries the acting user's ID. Authentication happens upstream.
const ActorHeader = "X-User-ID"

// AnonymousActor is used when no actor header is present.
const AnonymousActor = "anonymous"

const actorKey = "actor"

// Actor resolves the acting user and tags the request logger with it.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			actor = AnonymousActor
		}
		c.Set(actorKey, actor)

		ctx := logger.SetUserID(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Set("logger", logger.FromContext(ctx))
		c.Next()
	}
}

// GetActor returns the acting user resolved by Actor.
func GetActor(c *gin.Context) string {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(string); ok {
			return actor
		}
	}
	return AnonymousActor
}
