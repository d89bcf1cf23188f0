package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	obscontext "github.com/smallbiznis/carbonvault/internal/observability/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	contextActorKey = "actor"
)

// ActorContext reads the identity asserted by the authenticating proxy.
// Requests without one reach the route gate unauthenticated.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := authorization.Actor{
			ID:   c.GetHeader(HeaderActorID),
			Role: c.GetHeader(HeaderActorRole),
		}.Normalize()
		if actor.ID != "" {
			c.Set(contextActorKey, actor)
			c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), actor.ID, actor.Role))
		}
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	if c == nil {
		return authorization.Actor{}, false
	}
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	if !ok || strings.TrimSpace(actor.ID) == "" {
		return authorization.Actor{}, false
	}
	return actor, true
}
