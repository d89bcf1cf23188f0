package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	retirementdomain "github.com/smallbiznis/carbonvault/internal/retirement/domain"
)

func (s *Server) ListRetirements(c *gin.Context) {
	pending, err := s.retirementSvc.ListPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if pending == nil {
		pending = []retirementdomain.RetirementRequest{}
	}

	c.JSON(http.StatusOK, gin.H{"data": pending})
}

func (s *Server) GetRetirement(c *gin.Context) {
	req, err := s.retirementSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": req})
}

func (s *Server) ConfirmRetirement(c *gin.Context) {
	asset, err := s.retirementSvc.Confirm(c.Request.Context(), retirementdomain.ResolveRequest{
		ID:    c.Param("id"),
		Actor: mustActor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": asset})
}

func (s *Server) RejectRetirement(c *gin.Context) {
	var req rejectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	asset, err := s.retirementSvc.Reject(c.Request.Context(), retirementdomain.ResolveRequest{
		ID:     c.Param("id"),
		Actor:  mustActor(c),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": asset})
}
