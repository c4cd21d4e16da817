package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/gapbot/config"
	"github.com/alejandrodnm/gapbot/internal/adapters/binance"
	"github.com/alejandrodnm/gapbot/internal/adapters/notify"
	"github.com/alejandrodnm/gapbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/gapbot/internal/adapters/storage"
	"github.com/alejandrodnm/gapbot/internal/application/catalog"
	"github.com/alejandrodnm/gapbot/internal/application/engine"
	"github.com/alejandrodnm/gapbot/internal/application/execution"
	"github.com/alejandrodnm/gapbot/internal/application/exits"
	"github.com/alejandrodnm/gapbot/internal/application/feed"
	"github.com/alejandrodnm/gapbot/internal/application/pricecache"
	"github.com/alejandrodnm/gapbot/internal/application/risk"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	discover := flag.Bool("discover", false, "run one discovery pass, print the catalog and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("gapbot starting",
		"config", *configPath,
		"assets", cfg.Feed.Assets,
		"min_gap", cfg.Trading.MinGapPercent,
		"discover", *discover,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)

	store, err := storage.NewSQLite(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole()
	cat := catalog.New(client, store, cfg.Discovery.MinVolume, cfg.Discovery.MinResolutionHours)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *discover {
		runDiscover(ctx, cat, notifier)
		return
	}

	cache := pricecache.New(client, cfg.PriceRefreshInterval())
	ledger := risk.NewLedger(store, risk.Limits{
		DailyLossLimit:           cfg.Trading.DailyLossLimit,
		MaxDailyTrades:           cfg.Trading.MaxDailyTrades,
		MaxSimultaneousPositions: cfg.Trading.MaxSimultaneousPositions,
		MaxTotalExposure:         cfg.Trading.MaxTotalExposure,
		Cooldown:                 cfg.Cooldown(),
	})
	sizer := execution.NewSizer(cfg.Trading.BasePositionSize, cfg.Trading.MaxPositionSize)
	executor := execution.NewExecutor(store, ledger, sizer, notifier)

	stream := binance.NewStream(cfg.Feed.StreamURL, cfg.Feed.Assets)
	priceFeed := feed.New(stream, feed.Config{
		SignificantMove:       cfg.Feed.SignificantMovePct,
		ReconnectInitialDelay: cfg.ReconnectInitialDelay(),
		ReconnectMaxDelay:     cfg.ReconnectMaxDelay(),
		ReconnectMaxAttempts:  cfg.Feed.ReconnectMaxAttempts,
	})

	monitor := exits.NewMonitor(store, executor, priceFeed, cache, cat, exits.Rules{
		ProfitTargetPct: cfg.Trading.ProfitTargetPct,
		StopLossPct:     cfg.Trading.StopLossPct,
		MaxHoldTime:     cfg.MaxHoldTime(),
	}, cfg.ExitSweepInterval())

	eng := engine.New(cfg, priceFeed, cat, cache, executor, monitor, store, notifier)

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("gapbot stopped cleanly")
}

// runDiscover ejecuta una sola pasada de descubrimiento e imprime el
// catálogo resultante.
func runDiscover(ctx context.Context, cat *catalog.Catalog, notifier *notify.Console) {
	result, err := cat.Discover(ctx)
	if err != nil {
		slog.Error("discovery failed", "err", err)
		os.Exit(1)
	}

	notifier.PrintCatalog(cat.All())

	slog.Info("discovery complete",
		"discovered", result.Discovered,
		"matched", result.Matched,
		"excluded", result.Excluded,
		"accepted", result.Accepted,
		"persist_errors", len(result.PersistErrs),
	)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
