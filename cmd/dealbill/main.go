package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/config"
	"github.com/smallbiznis/dealbill/internal/migration"
	"github.com/smallbiznis/dealbill/internal/observability"
	"github.com/smallbiznis/dealbill/internal/server"
	"github.com/smallbiznis/dealbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
