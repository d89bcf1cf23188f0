package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/carbonvault/internal/approval"
	approvaldomain "github.com/smallbiznis/carbonvault/internal/approval/domain"
	"github.com/smallbiznis/carbonvault/internal/asset"
	assetdomain "github.com/smallbiznis/carbonvault/internal/asset/domain"
	"github.com/smallbiznis/carbonvault/internal/attestation"
	"github.com/smallbiznis/carbonvault/internal/audit"
	auditdomain "github.com/smallbiznis/carbonvault/internal/audit/domain"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/smallbiznis/carbonvault/internal/ingestion"
	ingestiondomain "github.com/smallbiznis/carbonvault/internal/ingestion/domain"
	"github.com/smallbiznis/carbonvault/internal/ledgermetrics"
	"github.com/smallbiznis/carbonvault/internal/marketplace"
	marketplacedomain "github.com/smallbiznis/carbonvault/internal/marketplace/domain"
	"github.com/smallbiznis/carbonvault/internal/observability"
	obsmiddleware "github.com/smallbiznis/carbonvault/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/carbonvault/internal/observability/metrics"
	obstracing "github.com/smallbiznis/carbonvault/internal/observability/tracing"
	"github.com/smallbiznis/carbonvault/internal/ratelimit"
	"github.com/smallbiznis/carbonvault/internal/retirement"
	retirementdomain "github.com/smallbiznis/carbonvault/internal/retirement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	attestation.Module,
	asset.Module,
	ingestion.Module,
	approval.Module,
	retirement.Module,
	ratelimit.Module,
	marketplace.Module,
	ledgermetrics.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	ingestionSvc   ingestiondomain.Service
	approvalSvc    approvaldomain.Service
	assetSvc       assetdomain.Service
	marketplaceSvc marketplacedomain.Service
	retirementSvc  retirementdomain.Service
	auditSvc       auditdomain.Service
	authzSvc       authorization.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	IngestionSvc   ingestiondomain.Service
	ApprovalSvc    approvaldomain.Service
	AssetSvc       assetdomain.Service
	MarketplaceSvc marketplacedomain.Service
	RetirementSvc  retirementdomain.Service
	AuditSvc       auditdomain.Service
	AuthzSvc       authorization.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		ingestionSvc:   p.IngestionSvc,
		approvalSvc:    p.ApprovalSvc,
		assetSvc:       p.AssetSvc,
		marketplaceSvc: p.MarketplaceSvc,
		retirementSvc:  p.RetirementSvc,
		auditSvc:       p.AuditSvc,
		authzSvc:       p.AuthzSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(ActorContext())

	// -------- Ingestion --------
	api.POST("/ingestions", s.authorize(authorization.ObjectIngestion, authorization.ActionIngestionSubmit), s.SubmitIngestion)
	api.GET("/ingestions", s.authorize(authorization.ObjectIngestion, authorization.ActionIngestionView), s.ListIngestions)
	api.GET("/ingestions/:id", s.authorize(authorization.ObjectIngestion, authorization.ActionIngestionView), s.GetIngestion)
	api.POST("/ingestions/:id/approve", s.authorize(authorization.ObjectIngestion, authorization.ActionIngestionApprove), s.ApproveIngestion)
	api.POST("/ingestions/:id/reject", s.authorize(authorization.ObjectIngestion, authorization.ActionIngestionReject), s.RejectIngestion)

	// -------- Assets --------
	api.GET("/assets", s.authorize(authorization.ObjectAsset, authorization.ActionAssetView), s.ListAssets)
	api.GET("/assets/summary", s.authorize(authorization.ObjectAsset, authorization.ActionAssetView), s.GetAssetSummary)
	api.GET("/assets/:id", s.authorize(authorization.ObjectAsset, authorization.ActionAssetView), s.GetAsset)
	api.POST("/assets/:id/buy", s.authorize(authorization.ObjectAsset, authorization.ActionAssetBuy), s.BuyAsset)
	api.POST("/assets/:id/sell", s.authorize(authorization.ObjectAsset, authorization.ActionAssetSell), s.SellAsset)
	api.POST("/assets/:id/transfer", s.authorize(authorization.ObjectAsset, authorization.ActionAssetTransfer), s.TransferAsset)
	api.POST("/assets/:id/retire", s.authorize(authorization.ObjectAsset, authorization.ActionAssetRetire), s.RetireAsset)

	// -------- Retirements --------
	api.GET("/retirements", s.authorize(authorization.ObjectRetirement, authorization.ActionRetirementView), s.ListRetirements)
	api.GET("/retirements/:id", s.authorize(authorization.ObjectRetirement, authorization.ActionRetirementView), s.GetRetirement)
	api.POST("/retirements/:id/confirm", s.authorize(authorization.ObjectRetirement, authorization.ActionRetirementConfirm), s.ConfirmRetirement)
	api.POST("/retirements/:id/reject", s.authorize(authorization.ObjectRetirement, authorization.ActionRetirementReject), s.RejectRetirement)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
