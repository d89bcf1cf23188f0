package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/carbonvault/internal/authorization"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action)
		if errors.Is(err, authorization.ErrInvalidActor) || errors.Is(err, authorization.ErrInvalidRole) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// mustActor returns the caller resolved by the route gate.
func mustActor(c *gin.Context) authorization.Actor {
	actor, _ := actorFromContext(c)
	return actor
}
