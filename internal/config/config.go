// Package config loads the run configuration from viper and validates it.
package config

import (
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/morikuni/failure/v2"
	"github.com/spf13/viper"
)

// ErrorCode defines error types for configuration loading
type ErrorCode string

const (
	// ErrInvalidConfig is returned when a value is out of range or undecodable
	ErrInvalidConfig ErrorCode = "InvalidConfig"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Keys used in the config file, environment (LINKSCAN_ prefix) and flags.
const (
	KeyMaxConcurrency     = "max_concurrency"
	KeyConcurrencyCeiling = "concurrency_ceiling"
	KeyBatchSize          = "batch_size"
	KeyRequestTimeout     = "request_timeout"
	KeyUserAgent          = "user_agent"
	KeyWorkers            = "workers"
	KeyCacheSize          = "cache_size"
	KeyRateLimit          = "rate_limit"
)

const (
	DefaultMaxConcurrency     = 100
	DefaultConcurrencyCeiling = 256
	DefaultBatchSize          = 50
	DefaultRequestTimeout     = 10 * time.Second
	DefaultUserAgent          = "linkscan/1.0 (URL reachability checker)"
	DefaultCacheSize          = 1024
)

// Config holds every tunable of a scan.
type Config struct {
	UserAgent          string        `mapstructure:"user_agent" validate:"required"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxConcurrency     int           `mapstructure:"max_concurrency" validate:"gte=1"`
	ConcurrencyCeiling int           `mapstructure:"concurrency_ceiling" validate:"gte=1"`
	BatchSize          int           `mapstructure:"batch_size" validate:"gte=1"`
	Workers            int           `mapstructure:"workers" validate:"gte=1"`
	CacheSize          int           `mapstructure:"cache_size" validate:"gte=0"`
	RateLimit          float64       `mapstructure:"rate_limit" validate:"gte=0"`
}

// DefaultWorkers is three workers per available CPU.
func DefaultWorkers() int {
	return 3 * runtime.NumCPU()
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		UserAgent:          DefaultUserAgent,
		RequestTimeout:     DefaultRequestTimeout,
		MaxConcurrency:     DefaultMaxConcurrency,
		ConcurrencyCeiling: DefaultConcurrencyCeiling,
		BatchSize:          DefaultBatchSize,
		Workers:            DefaultWorkers(),
		CacheSize:          DefaultCacheSize,
	}
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyMaxConcurrency, d.MaxConcurrency)
	v.SetDefault(KeyConcurrencyCeiling, d.ConcurrencyCeiling)
	v.SetDefault(KeyBatchSize, d.BatchSize)
	v.SetDefault(KeyRequestTimeout, d.RequestTimeout)
	v.SetDefault(KeyUserAgent, d.UserAgent)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyCacheSize, d.CacheSize)
	v.SetDefault(KeyRateLimit, d.RateLimit)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))

	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, failure.New(ErrInvalidConfig,
			failure.Message("cannot decode configuration"),
			failure.Context{"error": err.Error()},
		)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return failure.New(ErrInvalidConfig,
			failure.Message("invalid configuration"),
			failure.Context{"error": err.Error()},
		)
	}

	return nil
}

// EffectiveConcurrency is the admission-gate size: the requested concurrency
// capped at the configured ceiling.
func (c Config) EffectiveConcurrency() int {
	return min(c.MaxConcurrency, c.ConcurrencyCeiling)
}
