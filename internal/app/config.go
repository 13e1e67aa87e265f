package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (PRICING_ prefix), flags, or YAML config files.
type Config struct {
	Addr             string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL      string `usage:"PostgreSQL connection URL (PRICING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	DefaultCurrency  string `default:"USD" usage:"Currency assumed when a quote request omits one" flag:"default-currency"`
	DefaultOrderType string `default:"default" usage:"Order type used for quote calculation" flag:"default-order-type"`
	Surcharge        SurchargeConfig
	Refresh          RefreshConfig
	Graceful         GracefulConfig
}

// SurchargeConfig controls the built-in order surcharge processor.
type SurchargeConfig struct {
	Label string `default:"Service fee" usage:"Display label of the surcharge adjustment"`
	Rate  string `default:"0" usage:"Surcharge rate as a decimal fraction (e.g. 0.02 for 2%)"`
}

// RefreshConfig controls the refresh policy applied to the default order type.
type RefreshConfig struct {
	Frequency    time.Duration `default:"0s" usage:"Minimum interval between order refreshes"`
	CustomerOnly bool          `default:"false" usage:"Restrict refresh to the owning customer" flag:"refresh-customer-only"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// SurchargeRate parses the configured rate.
func (c *Config) SurchargeRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Surcharge.Rate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse surcharge rate %q", c.Surcharge.Rate)
	}
	if rate.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("surcharge rate %q must not be negative", c.Surcharge.Rate)
	}
	return rate, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRICING",
		Files:     []string{"config.yaml", "/etc/pricing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PRICING_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PRICING_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
