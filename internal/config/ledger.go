package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	AttestationProviderLocal    = "local"
	AttestationProviderHTTP     = "http"
	AttestationProviderDisabled = "disabled"
)

// LedgerConfig tunes the lifecycle engine. It is reloaded from ledger.yml at runtime.
type LedgerConfig struct {
	Attestation AttestationConfig `mapstructure:"attestation"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	RateLimit   RateLimitConfig   `mapstructure:"rateLimit"`
}

type AttestationConfig struct {
	Provider string        `mapstructure:"provider"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Workers  int           `mapstructure:"workers"`
}

type ConcurrencyConfig struct {
	// CASAttempts is the number of read-validate-commit rounds before Conflict is surfaced.
	CASAttempts int `mapstructure:"casAttempts"`
	// StorageRetries bounds retries of transient storage failures.
	StorageRetries int `mapstructure:"storageRetries"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Attestation: AttestationConfig{
			Provider: AttestationProviderLocal,
			Timeout:  3 * time.Second,
			Workers:  8,
		},
		Concurrency: ConcurrencyConfig{
			CASAttempts:    3,
			StorageRetries: 4,
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			Rate:    5,
			Burst:   10,
		},
	}
}

type LedgerConfigHolder struct {
	current atomic.Value // holds LedgerConfig
}

// NewStaticLedgerConfig returns a holder that never reloads.
func NewStaticLedgerConfig(cfg LedgerConfig) *LedgerConfigHolder {
	holder := &LedgerConfigHolder{}
	holder.current.Store(normalizeLedgerConfig(cfg))
	return holder
}

func NewLedgerConfigHolder(appCfg Config, log *zap.Logger) (*LedgerConfigHolder, error) {
	log = log.Named("ledger.config")
	v := viper.New()

	v.SetConfigName("ledger")
	v.SetConfigType("yml")
	if appCfg.LedgerConfigPath != "" {
		v.AddConfigPath(appCfg.LedgerConfigPath)
	}
	v.AddConfigPath("/etc/carbonvault")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CARBONVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLedgerConfig()
	v.SetDefault("ledger.attestation.provider", defaults.Attestation.Provider)
	v.SetDefault("ledger.attestation.endpoint", defaults.Attestation.Endpoint)
	v.SetDefault("ledger.attestation.timeout", defaults.Attestation.Timeout)
	v.SetDefault("ledger.attestation.workers", defaults.Attestation.Workers)
	v.SetDefault("ledger.concurrency.casAttempts", defaults.Concurrency.CASAttempts)
	v.SetDefault("ledger.concurrency.storageRetries", defaults.Concurrency.StorageRetries)
	v.SetDefault("ledger.rateLimit.enabled", defaults.RateLimit.Enabled)
	v.SetDefault("ledger.rateLimit.rate", defaults.RateLimit.Rate)
	v.SetDefault("ledger.rateLimit.burst", defaults.RateLimit.Burst)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var cfg LedgerConfig
	if err := v.UnmarshalKey("ledger", &cfg); err != nil {
		return nil, err
	}
	if err := validateLedgerConfig(cfg); err != nil {
		return nil, err
	}

	holder := &LedgerConfigHolder{}
	holder.current.Store(normalizeLedgerConfig(cfg))

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated LedgerConfig
			if err := v.UnmarshalKey("ledger", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validateLedgerConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(normalizeLedgerConfig(updated))
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *LedgerConfigHolder) Get() LedgerConfig {
	if h == nil {
		return DefaultLedgerConfig()
	}
	cfg, ok := h.current.Load().(LedgerConfig)
	if !ok {
		return DefaultLedgerConfig()
	}
	return cfg
}

func validateLedgerConfig(cfg LedgerConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Attestation.Provider)) {
	case AttestationProviderLocal, AttestationProviderDisabled, "":
	case AttestationProviderHTTP:
		if strings.TrimSpace(cfg.Attestation.Endpoint) == "" {
			return errors.New("ledger.attestation.endpoint is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown attestation provider %q", cfg.Attestation.Provider)
	}
	if cfg.Attestation.Timeout < 0 {
		return errors.New("ledger.attestation.timeout cannot be negative")
	}
	if cfg.Concurrency.CASAttempts < 0 {
		return errors.New("ledger.concurrency.casAttempts cannot be negative")
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.Rate <= 0 || cfg.RateLimit.Burst <= 0) {
		return errors.New("ledger.rateLimit rate and burst must be positive when enabled")
	}
	return nil
}

func normalizeLedgerConfig(cfg LedgerConfig) LedgerConfig {
	defaults := DefaultLedgerConfig()
	cfg.Attestation.Provider = strings.ToLower(strings.TrimSpace(cfg.Attestation.Provider))
	if cfg.Attestation.Provider == "" {
		cfg.Attestation.Provider = defaults.Attestation.Provider
	}
	if cfg.Attestation.Timeout == 0 {
		cfg.Attestation.Timeout = defaults.Attestation.Timeout
	}
	if cfg.Attestation.Workers <= 0 {
		cfg.Attestation.Workers = defaults.Attestation.Workers
	}
	if cfg.Concurrency.CASAttempts <= 0 {
		cfg.Concurrency.CASAttempts = defaults.Concurrency.CASAttempts
	}
	if cfg.Concurrency.StorageRetries <= 0 {
		cfg.Concurrency.StorageRetries = defaults.Concurrency.StorageRetries
	}
	return cfg
}
