package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/morikuni/failure/v2"
	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	if cfg.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.BatchSize)
	}

	if cfg.EffectiveConcurrency() != 100 {
		t.Errorf("expected effective concurrency 100, got %d", cfg.EffectiveConcurrency())
	}

	if cfg.Workers < 3 {
		t.Errorf("expected at least 3 workers, got %d", cfg.Workers)
	}
}

func TestEffectiveConcurrencyCapped(t *testing.T) {
	cfg := Default()
	cfg.MaxConcurrency = 500
	cfg.ConcurrencyCeiling = 256

	if got := cfg.EffectiveConcurrency(); got != 256 {
		t.Errorf("expected ceiling 256 to apply, got %d", got)
	}
}

func TestLoadFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	yaml := `
max_concurrency: 20
batch_size: 10
request_timeout: 3s
user_agent: test-agent
rate_limit: 2.5
`
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default()
	want.MaxConcurrency = 20
	want.BatchSize = 10
	want.RequestTimeout = 3 * time.Second
	want.UserAgent = "test-agent"
	want.RateLimit = 2.5

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalid(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value any
	}{
		{"zero batch", KeyBatchSize, 0},
		{"zero concurrency", KeyMaxConcurrency, 0},
		{"negative timeout", KeyRequestTimeout, "-1s"},
		{"empty user agent", KeyUserAgent, ""},
		{"negative rate", KeyRateLimit, -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tc.key, tc.value)

			_, err := Load(v)
			if err == nil {
				t.Fatal("expected validation error")
			}

			if !failure.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
