package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	"github.com/smallbiznis/huddle/internal/config"
	"github.com/smallbiznis/huddle/internal/event"
	"github.com/smallbiznis/huddle/internal/ledger"
	"github.com/smallbiznis/huddle/internal/lock"
	"github.com/smallbiznis/huddle/internal/migration"
	"github.com/smallbiznis/huddle/internal/observability"
	"github.com/smallbiznis/huddle/internal/payment"
	"github.com/smallbiznis/huddle/internal/ratelimit"
	"github.com/smallbiznis/huddle/internal/scheduler"
	"github.com/smallbiznis/huddle/internal/seed"
	"github.com/smallbiznis/huddle/internal/server"
	"github.com/smallbiznis/huddle/internal/transaction"
	"github.com/smallbiznis/huddle/internal/user"
	"github.com/smallbiznis/huddle/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		lock.Module,

		// Functional Domains
		user.Module,
		event.Module,
		ledger.Module,
		transaction.Module,
		payment.Module,
		seed.Module,

		// Background + edge
		scheduler.Module,
		ratelimit.Module,
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
