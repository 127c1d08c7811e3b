package main

import (
	"context"
	"fmt"
	"os"

	"finanzen/internal/amqp"
	"finanzen/internal/cli"
	"finanzen/internal/engine"
	applog "finanzen/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()
	if len(os.Args) < 2 {
		usage()
		return 2
	}

	// stdout carries command output, logs go to stderr.
	boot := cli.SetupLogger("info", applog.ComponentCLI, os.Stderr)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentCLI, os.Stderr)
	ctx := applog.WithContext(context.Background(), logger)

	stores, err := cli.OpenStores(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open stores", applog.FieldError, err)
		return 1
	}
	defer stores.Close()

	opts := []engine.Option{
		engine.WithSnapshotDebounce(cfg.SnapshotDebounce),
		engine.WithCategoryTTL(cfg.CategoryCacheTTL),
	}
	if stores.Remote != nil {
		opts = append(opts, engine.WithRemote(stores.Remote))
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, changes will not be exported", applog.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, engine.WithNotifier(changePublisher(client)))
		}
	}

	a := &app{
		cfg:     cfg,
		stores:  stores,
		engine:  engine.New(stores.Snapshots, opts...),
		out:     os.Stdout,
		newSink: cli.NewLedgerWriter,
	}
	if os.Args[1] != "export" {
		a.engine.Load(ctx, cfg.UserID)
	}
	err = a.dispatch(ctx, os.Args[1], os.Args[2:])
	a.engine.Close(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Command failed", applog.FieldOperation, os.Args[1], applog.FieldError, err)
		return 1
	}
	return 0
}

// changePublisher forwards engine changes to the exchange.
func changePublisher(client *amqp.Client) engine.Notifier {
	return engine.NotifierFunc(func(ctx context.Context, c engine.Change) error {
		return client.PublishChange(ctx, amqp.NewChangeMessage(c.Entity, c.Op, c.ID, c.UserID))
	})
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: finanzen <command> [flags]

commands:
  summary               totals, category breakdown and six-month trend
  week                  spending per weekday (-offset weeks back)
  add-income            -type NAME -amount N
  add-fixed             -type NAME -amount N
  add-transaction       -name NAME -amount N [-category C] [-date D]
  delete-transaction    -id ID
  add-budget            -name NAME -limit N [-icon I] [-color C]
  add-budget-expense    -budget ID|NAME -name NAME -amount N [-date D]
  add-goal              -name NAME -target N [-icon I]
  deposit               -goal ID|NAME -amount N [-date D]
  currency              -code ISO
  complete-onboarding
  reset-month
  reset-all
  export                write every transaction to the ledger sheet`)
}
