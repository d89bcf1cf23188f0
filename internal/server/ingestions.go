package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	approvaldomain "github.com/smallbiznis/carbonvault/internal/approval/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	ingestiondomain "github.com/smallbiznis/carbonvault/internal/ingestion/domain"
)

type submitIngestionRequest struct {
	DeviceID   string          `json:"device_id"`
	Tonnes     decimal.Decimal `json:"tonnes"`
	CapturedAt *time.Time      `json:"captured_at"`
}

type approveIngestionRequest struct {
	RegistrySerial string `json:"registry_serial"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) SubmitIngestion(c *gin.Context) {
	var req submitIngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// devices report for themselves
	actor := mustActor(c)
	deviceID := strings.TrimSpace(req.DeviceID)
	if actor.Role == authorization.RoleDevice {
		if deviceID != "" && deviceID != actor.ID {
			AbortWithError(c, ErrForbidden)
			return
		}
		deviceID = actor.ID
	}

	record, err := s.ingestionSvc.Submit(c.Request.Context(), ingestiondomain.SubmitRequest{
		DeviceID:   deviceID,
		Tonnes:     req.Tonnes,
		CapturedAt: req.CapturedAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": record})
}

func (s *Server) ListIngestions(c *gin.Context) {
	var req ingestiondomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ingestionSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Records, "page_info": resp.PageInfo})
}

func (s *Server) GetIngestion(c *gin.Context) {
	record, err := s.ingestionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) ApproveIngestion(c *gin.Context) {
	var req approveIngestionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	asset, err := s.approvalSvc.Approve(c.Request.Context(), approvaldomain.ApproveRequest{
		IngestionID:    c.Param("id"),
		Actor:          mustActor(c),
		RegistrySerial: req.RegistrySerial,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": asset})
}

func (s *Server) RejectIngestion(c *gin.Context) {
	var req rejectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	record, err := s.approvalSvc.Reject(c.Request.Context(), approvaldomain.RejectRequest{
		IngestionID: c.Param("id"),
		Actor:       mustActor(c),
		Reason:      req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

// bindOptionalJSON binds a body when one was sent.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}
