// Command rebalancer moves an AlphaInsider strategy toward a target allocation.
// It cancels the strategy's open orders, then buys and sells at market until
// every position matches its target weight, and exits.
//
// Usage:
//
//	rebalancer --config rebalance.yaml
//	rebalancer --setup (runs the configuration wizard first)
//	rebalancer --dry-run (plans orders without touching the strategy)
//
// Environment variables (also read from .env):
//
//	ALPHAINSIDER_API_KEY, ALPHAINSIDER_STRATEGY_ID
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/rebalancer/config"
	"github.com/vadiminshakov/rebalancer/internal/app"
	"github.com/vadiminshakov/rebalancer/internal/clients"
	"github.com/vadiminshakov/rebalancer/internal/logger"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
	"github.com/vadiminshakov/rebalancer/internal/services/rebalancer"
	"github.com/vadiminshakov/rebalancer/internal/setup"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		return 2
	}

	path := flags.ConfigPath
	if flags.Setup {
		path, err = setup.RunTUI()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	flags.Apply(&cfg)

	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to build logger: %v\n", err)
		return 1
	}
	defer l.Sync()

	client := clients.NewAlphaInsiderClient(cfg.Endpoint, cfg.APIKey,
		clients.WithTimeout(cfg.Timeout),
		clients.WithRateLimit(cfg.RateLimit))

	var opts []rebalancer.Option
	if cfg.Reference.Enabled() {
		p, err := pricer.New(cfg.Reference.Source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		opts = append(opts, rebalancer.WithPriceGuard(
			pricer.NewGuard(l, p, cfg.Reference.Quote, cfg.Reference.MaxDeviation)))
	}

	engine, err := rebalancer.NewEngine(l, client, rebalancer.Config{
		StrategyID:        cfg.StrategyID,
		Targets:           cfg.Positions,
		Venues:            cfg.Venues,
		CancelConcurrency: cfg.CancelConcurrency,
		DryRun:            cfg.DryRun,
	}, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := app.NewRunner(l, engine, os.Stdout)
	if cfg.Schedule == "" {
		if err := runner.RunOnce(ctx); err != nil {
			return 1
		}
		return 0
	}

	if err := app.NewScheduler(l, runner).Run(ctx, cfg.Schedule); err != nil {
		l.Error("scheduler failed", zap.Error(err))
		return 1
	}
	return 0
}
