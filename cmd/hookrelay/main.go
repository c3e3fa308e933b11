package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/internal/clock"
	"github.com/smallbiznis/hookrelay/internal/migration"
	"github.com/smallbiznis/hookrelay/internal/observability"
	"github.com/smallbiznis/hookrelay/internal/server"
	"github.com/smallbiznis/hookrelay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
		migration.Module,
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
