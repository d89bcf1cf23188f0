package authorization

import (
	"github.com/casbin/casbin/v2"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("authorization",
	fx.Provide(func(db *gorm.DB) (*casbin.SyncedEnforcer, error) { return NewEnforcer(db) }),
	fx.Provide(NewService),
)
