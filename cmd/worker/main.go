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
	"github.com/alejandrodnm/mirrorcore/internal/adapters/notify"
	"github.com/alejandrodnm/mirrorcore/internal/adapters/storage"
	"github.com/alejandrodnm/mirrorcore/internal/adapters/vault"
	"github.com/alejandrodnm/mirrorcore/internal/adapters/venue"
	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/executor"
	"github.com/alejandrodnm/mirrorcore/internal/pairing"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
	"github.com/alejandrodnm/mirrorcore/internal/reconciler"
	"github.com/alejandrodnm/mirrorcore/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	webhookURL := flag.String("webhook-url", "", "chat webhook URL for alerts (overrides MIRRORCORE_WEBHOOK_URL)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("worker: failed to load config", "err", err, "path", *configPath)
		os.Exit(2)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)
	log := slog.Default()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		log.Error("worker: failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(2)
	}
	defer store.Close()

	passphrase := os.Getenv(cfg.Venue.VaultPassphraseEnv)
	if passphrase == "" {
		log.Error("worker: vault passphrase env var is unset", "env", cfg.Venue.VaultPassphraseEnv)
		os.Exit(2)
	}

	var venueExecutor ports.VenueExecutor
	var onchainBalance ports.OnchainBalanceReader
	switch cfg.Venue.ExecutorMode {
	case "live":
		v := vault.New(store)
		live := venue.NewLive(cfg.Venue.CLOBHost, cfg.Venue.ChainID, v, passphrase, cfg.Policy.MarketMinBuyUSDC)
		venueExecutor = live

		source, err := chain.NewEthClientSource(cfg.Chain.RPCURL, firstOrEmpty(cfg.Chain.Exchanges))
		if err != nil {
			log.Warn("worker: failed to dial rpc for onchain balance checks, proceeding without them", "err", err)
		} else {
			onchainBalance = source
		}
	default:
		venueExecutor = venue.NewStub(cfg.Policy.MarketMinBuyUSDC, cfg.Risk.MaxSlippageBps)
	}

	webhook := *webhookURL
	if webhook == "" {
		webhook = os.Getenv("MIRRORCORE_WEBHOOK_URL")
	}
	var sink ports.ChatSink = notify.NewConsole()
	if webhook != "" {
		sink = notify.NewWebhook(webhook)
	}
	notifier := notify.New(log, sink, store)

	pairingProc := pairing.New(log, store, nil, pairing.Config{
		MarketMinBuyUSDC:           cfg.Policy.MarketMinBuyUSDC,
		MinSourceNotionalUSDC:      cfg.Policy.MinSourceNotionalUSDC,
		BalanceFailCooldownSeconds: cfg.Policy.BalanceFailCooldownSeconds,
	})
	engine := executor.New(log, venueExecutor)
	recon := reconciler.New(log, store, venueExecutor, onchainBalance, notifier, cfg.Policy.OpenOrderCancelAfterSeconds)

	riskLimits := domain.RiskLimits{
		MaxOrderUSD:                cfg.Risk.MaxOrderUSDC,
		MaxDailyLossPct:            cfg.Risk.MaxDailyLossPct,
		MaxConsecutiveLosses:       cfg.Risk.MaxConsecutiveLosses,
		MaxConsecutiveExecFailures: cfg.Risk.MaxConsecutiveExecFailures,
	}

	w := worker.New(log, store, pairingProc, engine, recon, notifier, riskLimits, domain.RiskState{}, worker.Config{
		PollInterval:          cfg.WorkerPollInterval(),
		BlockAlertCooldownSec: cfg.Policy.BlockAlertCooldownSeconds,
		QueuedBatchSize:       50,
		StaleBatchSize:        50,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("worker starting", "config", *configPath, "executor_mode", cfg.Venue.ExecutorMode)
	if err := w.Run(ctx); err != nil {
		log.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
	log.Info("worker stopped cleanly")
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
