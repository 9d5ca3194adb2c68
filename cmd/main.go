package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"pump_copy/internal/common"
	"pump_copy/internal/config"
	"pump_copy/internal/executor"
	"pump_copy/internal/gateway"
	"pump_copy/internal/keyring"
	"pump_copy/internal/limitorder"
	"pump_copy/internal/monitor"
	"pump_copy/internal/notify"
	"pump_copy/internal/pump"
	"pump_copy/internal/replicator"
	"pump_copy/internal/store"
)

func main() {
	logLevel := flag.String("log-level", "", "override LOG_LEVEL from the environment")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	common.SetLogLevel(cfg.LogLevel)
	log := common.Log.WithField("component", "main")

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("cannot open database")
	}
	defer db.Close()

	limiter := ratelimit.New(cfg.RateLimit)
	chain := gateway.New(cfg.RPCEndpoints, limiter)
	pricer := pump.NewPricer(chain)
	exec := executor.New(chain)

	var notifier notify.Notifier
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken)
		if err != nil {
			log.WithError(err).Fatal("cannot start telegram notifier")
		}
		notifier = tg
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set, notifications go to the log only")
		notifier = notify.NewLogNotifier()
	}

	keys := keyring.New(db)
	repl := replicator.New(db, exec, keys, chain, notifier)

	mon := monitor.New(chain, cfg.PollInterval)
	mon.SetCallback(repl.HandleTrade)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policies, err := db.ActivePolicies(ctx)
	if err != nil {
		log.WithError(err).Fatal("cannot load active policies")
	}
	leaders := make(map[string]struct{})
	for _, p := range policies {
		if _, ok := leaders[p.LeaderAddress]; ok {
			continue
		}
		leaders[p.LeaderAddress] = struct{}{}
		if err := mon.AddLeader(p.LeaderAddress); err != nil {
			log.WithError(err).WithField("leader", p.LeaderAddress).Error("cannot watch leader")
		}
	}
	log.WithField("leaders", len(leaders)).Info("leader set loaded")

	orders := limitorder.New(db, pricer, exec, keys, notifier, cfg.OrderInterval, cfg.ComputeUnitPrice)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mon.Start(gctx)
		<-gctx.Done()
		mon.Stop()
		return nil
	})
	g.Go(func() error {
		if err := orders.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	if cfg.WSEndpoint != "" {
		watcher := monitor.NewLogWatcher(cfg.WSEndpoint, chain)
		watcher.SetCallback(repl.HandleTrade)
		for leader := range leaders {
			leader := leader
			g.Go(func() error {
				return watcher.Watch(gctx, leader)
			})
		}
	}

	log.Info("copy trading engine started, press CTRL+C to exit")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("engine stopped")
	}
	log.Info("engine shut down cleanly")
}
