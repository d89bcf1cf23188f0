package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	marketplacedomain "github.com/smallbiznis/carbonvault/internal/marketplace/domain"
)

type transferAssetRequest struct {
	Recipient string `json:"recipient"`
}

func (s *Server) ListAssets(c *gin.Context) {
	var req assetdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.assetSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Assets, "page_info": resp.PageInfo})
}

func (s *Server) GetAssetSummary(c *gin.Context) {
	summary, err := s.assetSvc.Summary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetAsset(c *gin.Context) {
	asset, err := s.assetSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": asset})
}

func (s *Server) BuyAsset(c *gin.Context) {
	asset, err := s.marketplaceSvc.Buy(c.Request.Context(), s.tradeRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": asset})
}

func (s *Server) SellAsset(c *gin.Context) {
	asset, err := s.marketplaceSvc.Sell(c.Request.Context(), s.tradeRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": asset})
}

func (s *Server) TransferAsset(c *gin.Context) {
	var req transferAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	asset, err := s.marketplaceSvc.Transfer(c.Request.Context(), marketplacedomain.TransferRequest{
		AssetID:   c.Param("id"),
		Actor:     mustActor(c),
		Recipient: req.Recipient,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": asset})
}

func (s *Server) RetireAsset(c *gin.Context) {
	res, err := s.marketplaceSvc.RequestRetirement(c.Request.Context(), s.tradeRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": res})
}

func (s *Server) tradeRequest(c *gin.Context) marketplacedomain.TradeRequest {
	return marketplacedomain.TradeRequest{
		AssetID: c.Param("id"),
		Actor:   mustActor(c),
	}
}
