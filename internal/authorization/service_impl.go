package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const roleViewer = "role:viewer"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the RBAC enforcer. Policies persist through the gorm
// adapter when db is set and live in memory otherwise.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if db != nil {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, err
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	}
	enforcer.EnableAutoBuildRoleLinks(true)

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	actor = actor.Normalize()
	if actor.ID == "" {
		return ErrInvalidActor
	}
	switch actor.Role {
	case RoleAdmin, RoleCompany, RoleDevice:
	default:
		return ErrInvalidRole
	}

	allowed, err := s.enforcer.Enforce(roleSubject(actor.Role), strings.TrimSpace(object), strings.TrimSpace(action))
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("actor_id", actor.ID),
			zap.String("role", actor.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleSubject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleViewer, ObjectAsset, ActionAssetView},
		{roleViewer, ObjectIngestion, ActionIngestionView},

		{roleSubject(RoleDevice), ObjectIngestion, ActionIngestionSubmit},

		{roleSubject(RoleCompany), ObjectAsset, ActionAssetBuy},
		{roleSubject(RoleCompany), ObjectAsset, ActionAssetSell},
		{roleSubject(RoleCompany), ObjectAsset, ActionAssetTransfer},
		{roleSubject(RoleCompany), ObjectAsset, ActionAssetRetire},

		{roleSubject(RoleAdmin), ObjectIngestion, ActionIngestionApprove},
		{roleSubject(RoleAdmin), ObjectIngestion, ActionIngestionReject},
		{roleSubject(RoleAdmin), ObjectRetirement, ActionRetirementView},
		{roleSubject(RoleAdmin), ObjectRetirement, ActionRetirementConfirm},
		{roleSubject(RoleAdmin), ObjectRetirement, ActionRetirementReject},
		{roleSubject(RoleAdmin), ObjectAuditLog, ActionAuditLogView},
	}
	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy[0], policy[1], policy[2])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{roleSubject(RoleAdmin), roleViewer},
		{roleSubject(RoleCompany), roleViewer},
	}
	for _, grouping := range groupings {
		has, err := enforcer.HasGroupingPolicy(grouping[0], grouping[1])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddGroupingPolicy(grouping[0], grouping[1]); err != nil {
			return err
		}
	}
	return nil
}
