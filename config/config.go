package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration surface shared by run-watcher,
// run-worker and vault.
type Config struct {
	Chain   ChainConfig   `yaml:"chain"`
	Watcher WatcherConfig `yaml:"watcher"`
	Policy  PolicyConfig  `yaml:"policy"`
	Risk    RiskConfig    `yaml:"risk"`
	Venue   VenueConfig   `yaml:"venue"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ChainConfig points the watcher at an RPC endpoint and the contracts it tails.
type ChainConfig struct {
	ChainID   int64    `yaml:"chain_id"`
	RPCURL    string   `yaml:"rpc_url"`
	Exchanges []string `yaml:"exchanges"`
}

// WatcherConfig controls ChainWatcher's pacing and safety bounds.
type WatcherConfig struct {
	PollMinSeconds       int   `yaml:"poll_min_seconds"`
	PollMaxSeconds       int   `yaml:"poll_max_seconds"`
	BackoffSlowMs        int   `yaml:"backoff_slow_ms"`
	BackoffErrorStreak   int   `yaml:"backoff_error_streak"`
	RecoveryHealthyTicks int   `yaml:"recovery_healthy_ticks"`
	Confirmations        int64 `yaml:"confirmations"`
	MaxBlockRange        int64 `yaml:"max_block_range"`
	MaxLagBlocks         int64 `yaml:"max_lag_blocks"`
}

// PolicyConfig is the Pairing/Policy and worker-loop tick floors/cooldowns.
type PolicyConfig struct {
	MarketMinBuyUSDC            float64 `yaml:"market_min_buy_usdc"`
	MinSourceNotionalUSDC       float64 `yaml:"min_source_notional_usdc"`
	BalanceFailCooldownSeconds  int64   `yaml:"balance_fail_cooldown_seconds"`
	BlockAlertCooldownSeconds   int64   `yaml:"block_alert_cooldown_seconds"`
	OpenOrderCancelAfterSeconds int64   `yaml:"open_order_cancel_after_seconds"`
	WorkerPollSeconds           int     `yaml:"worker_poll_seconds"`
}

// RiskConfig feeds domain.RiskLimits.
type RiskConfig struct {
	MaxOrderUSDC               float64 `yaml:"max_order_usdc"`
	MaxSlippageBps             int     `yaml:"max_slippage_bps"`
	MaxDailyLossPct            float64 `yaml:"max_daily_loss_pct"`
	MaxConsecutiveLosses       int     `yaml:"max_consecutive_losses"`
	MaxConsecutiveExecFailures int     `yaml:"max_consecutive_exec_failures"`
}

// VenueConfig selects the Executor variant and its CLOB/RPC endpoints.
type VenueConfig struct {
	ExecutorMode       string `yaml:"executor_mode"` // stub | live
	CLOBHost           string `yaml:"clob_host"`
	ChainID            int64  `yaml:"chain_id"`
	SignatureType      int    `yaml:"signature_type"`
	VaultPassphraseEnv string `yaml:"vault_passphrase_env"`
}

// StorageConfig controls where data is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// LogConfig controls logging level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config at path, overlays a local .env if present, and
// fills in defaults for anything left unset.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// WorkerPollInterval is the worker loop's tick cadence as a time.Duration.
func (c *Config) WorkerPollInterval() time.Duration {
	return time.Duration(c.Policy.WorkerPollSeconds) * time.Second
}

// applyEnvOverrides overrides values with environment variables when
// present, following the MIRRORCORE_* naming the original PROJECTK_* env
// vars are renamed to.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRRORCORE_RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("MIRRORCORE_EXECUTOR_MODE"); v != "" {
		cfg.Venue.ExecutorMode = v
	}
	if v := os.Getenv("MIRRORCORE_DB_PATH"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults mirrors ProjectK's backend/config.py defaults, renamed to this
// repo's domain.
func setDefaults(cfg *Config) {
	if cfg.Chain.ChainID <= 0 {
		cfg.Chain.ChainID = 137
	}

	if cfg.Watcher.PollMinSeconds <= 0 {
		cfg.Watcher.PollMinSeconds = 5
	}
	if cfg.Watcher.PollMaxSeconds <= 0 {
		cfg.Watcher.PollMaxSeconds = 10
	}
	if cfg.Watcher.PollMaxSeconds < cfg.Watcher.PollMinSeconds {
		cfg.Watcher.PollMaxSeconds = cfg.Watcher.PollMinSeconds
	}
	if cfg.Watcher.BackoffSlowMs <= 0 {
		cfg.Watcher.BackoffSlowMs = 4000
	}
	if cfg.Watcher.BackoffErrorStreak <= 0 {
		cfg.Watcher.BackoffErrorStreak = 2
	}
	if cfg.Watcher.RecoveryHealthyTicks <= 0 {
		cfg.Watcher.RecoveryHealthyTicks = 6
	}
	if cfg.Watcher.Confirmations <= 0 {
		cfg.Watcher.Confirmations = 2
	}
	if cfg.Watcher.MaxBlockRange <= 0 {
		cfg.Watcher.MaxBlockRange = 200
	}
	if cfg.Watcher.MaxLagBlocks <= 0 {
		cfg.Watcher.MaxLagBlocks = 600
	}

	if cfg.Policy.MarketMinBuyUSDC <= 0 {
		cfg.Policy.MarketMinBuyUSDC = 1.00
	}
	if cfg.Policy.MinSourceNotionalUSDC <= 0 {
		cfg.Policy.MinSourceNotionalUSDC = 1.00
	}
	if cfg.Policy.BalanceFailCooldownSeconds <= 0 {
		cfg.Policy.BalanceFailCooldownSeconds = 900
	}
	if cfg.Policy.BlockAlertCooldownSeconds <= 0 {
		cfg.Policy.BlockAlertCooldownSeconds = 1800
	}
	if cfg.Policy.OpenOrderCancelAfterSeconds <= 0 {
		cfg.Policy.OpenOrderCancelAfterSeconds = 120
	}
	if cfg.Policy.WorkerPollSeconds <= 0 {
		cfg.Policy.WorkerPollSeconds = 10
	}

	if cfg.Risk.MaxOrderUSDC <= 0 {
		cfg.Risk.MaxOrderUSDC = 500
	}
	if cfg.Risk.MaxSlippageBps <= 0 {
		cfg.Risk.MaxSlippageBps = 300
	}
	if cfg.Risk.MaxDailyLossPct <= 0 {
		cfg.Risk.MaxDailyLossPct = 10
	}
	if cfg.Risk.MaxConsecutiveLosses <= 0 {
		cfg.Risk.MaxConsecutiveLosses = 5
	}
	if cfg.Risk.MaxConsecutiveExecFailures <= 0 {
		cfg.Risk.MaxConsecutiveExecFailures = 3
	}

	if cfg.Venue.ExecutorMode == "" {
		cfg.Venue.ExecutorMode = "stub"
	}
	if cfg.Venue.CLOBHost == "" {
		cfg.Venue.CLOBHost = "https://clob.polymarket.com"
	}
	if cfg.Venue.ChainID <= 0 {
		cfg.Venue.ChainID = 137
	}
	if cfg.Venue.VaultPassphraseEnv == "" {
		cfg.Venue.VaultPassphraseEnv = "MIRRORCORE_VAULT_PASSPHRASE"
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "mirrorcore.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
