package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/mirrorcore/config"
	"github.com/alejandrodnm/mirrorcore/internal/adapters/chain"
	"github.com/alejandrodnm/mirrorcore/internal/adapters/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("watcher: failed to load config", "err", err, "path", *configPath)
		os.Exit(2)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("watcher: failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(2)
	}
	defer store.Close()

	source, err := chain.NewEthClientSource(cfg.Chain.RPCURL, firstOrEmpty(cfg.Chain.Exchanges))
	if err != nil {
		slog.Error("watcher: failed to dial rpc", "err", err, "rpc_url", cfg.Chain.RPCURL)
		os.Exit(2)
	}

	w := chain.New(slog.Default(), source, store, chain.Config{
		ChainID:              cfg.Chain.ChainID,
		Exchanges:            cfg.Chain.Exchanges,
		Confirmations:        cfg.Watcher.Confirmations,
		MaxBlockRange:        cfg.Watcher.MaxBlockRange,
		MaxLagBlocks:         cfg.Watcher.MaxLagBlocks,
		PollMinSeconds:       cfg.Watcher.PollMinSeconds,
		PollMaxSeconds:       cfg.Watcher.PollMaxSeconds,
		BackoffSlowMs:        cfg.Watcher.BackoffSlowMs,
		BackoffErrorStreak:   cfg.Watcher.BackoffErrorStreak,
		RecoveryHealthyTicks: cfg.Watcher.RecoveryHealthyTicks,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("watcher starting", "config", *configPath, "chain_id", cfg.Chain.ChainID, "rpc_url", cfg.Chain.RPCURL)
	if err := w.Run(ctx); err != nil {
		slog.Error("watcher exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("watcher stopped cleanly")
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
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
