package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantrail/tickmill/params"
	"github.com/quantrail/tickmill/pkg/api"
	"github.com/quantrail/tickmill/pkg/engine"
	"github.com/quantrail/tickmill/pkg/journal"
	"github.com/quantrail/tickmill/pkg/strategy"
	"github.com/quantrail/tickmill/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := buildLogger(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Engine ----
	eng := engine.New(engine.Config{
		TickInterval:   cfg.Tick.Interval,
		TickStartPrice: cfg.Tick.StartPrice,
		TickVolume:     cfg.Tick.Volume,
	}, sugar)
	eng.Start()
	defer eng.Stop()

	// ---- Trade journal (optional) ----
	var jour *journal.Journal
	if cfg.Node.JournalPath != "" {
		jour, err = journal.Open(cfg.Node.JournalPath, sugar)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Node.JournalPath, "err", err)
		}
		defer jour.Close()
		jour.Attach(eng, cfg.Node.Symbols)
		sugar.Infow("journal_attached", "path", cfg.Node.JournalPath, "symbols", cfg.Node.Symbols)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Demo strategy (optional) ----
	// Enable with: ENABLE_STRATEGY=true
	if os.Getenv("ENABLE_STRATEGY") == "true" && len(cfg.Node.Symbols) > 0 {
		band := strategy.NewBandStrategy(eng, cfg.Node.Symbols[0],
			cfg.Tick.StartPrice, decimal.NewFromFloat(0.005), 10, sugar)
		band.Start()
		defer band.Stop()
		sugar.Infow("strategy_enabled", "symbol", cfg.Node.Symbols[0])
	}

	// ---- API Server ----
	apiServer := api.NewServer(eng, jour, sugar)
	defer apiServer.Close()

	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"api_addr", cfg.Node.APIAddr,
		"symbols", cfg.Node.Symbols,
		"tick_interval", cfg.Tick.Interval)

	<-ctx.Done()
	sugar.Infow("node_stopping")
}

func buildLogger(logFile string) (*zap.Logger, error) {
	if logFile != "" {
		return util.NewLoggerWithFile(logFile)
	}
	return util.NewLogger()
}
