package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	"github.com/smallbiznis/huddle/internal/config"
	"github.com/smallbiznis/huddle/internal/event"
	"github.com/smallbiznis/huddle/internal/ledger"
	"github.com/smallbiznis/huddle/internal/lock"
	"github.com/smallbiznis/huddle/internal/observability"
	"github.com/smallbiznis/huddle/internal/payment"
	"github.com/smallbiznis/huddle/internal/scheduler"
	"github.com/smallbiznis/huddle/internal/transaction"
	"github.com/smallbiznis/huddle/internal/user"
	"github.com/smallbiznis/huddle/pkg/db"
	"go.uber.org/fx"
)

// huddle-scheduler runs only the background sweeps, for deployments that
// keep them off the API replicas (SCHEDULER_ENABLED=false there).
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Domain services required by scheduler
		user.Module,
		event.Module,
		ledger.Module,
		transaction.Module,
		payment.Module,

		// No server module!
		fx.Provide(scheduler.ProvideConfig),
		fx.Provide(scheduler.New),
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
