package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/audit"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/config"
	"github.com/smallbiznis/docledger/internal/directory"
	"github.com/smallbiznis/docledger/internal/document"
	"github.com/smallbiznis/docledger/internal/lock"
	"github.com/smallbiznis/docledger/internal/logger"
	"github.com/smallbiznis/docledger/internal/migration"
	"github.com/smallbiznis/docledger/internal/numbering"
	"github.com/smallbiznis/docledger/internal/observability"
	"github.com/smallbiznis/docledger/internal/officialcopy"
	"github.com/smallbiznis/docledger/internal/payment"
	"github.com/smallbiznis/docledger/internal/providers"
	"github.com/smallbiznis/docledger/internal/server"
	"github.com/smallbiznis/docledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		lock.Module,
		providers.Module,

		// Engine
		audit.Module,
		directory.Module,
		numbering.Module,
		officialcopy.Module,
		document.Module,
		payment.Module,

		server.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
