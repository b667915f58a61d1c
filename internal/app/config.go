package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultDiscountURL is the hardcoded fallback discount service endpoint,
// overridable by flag/file and by the DISCOUNT_SERVICE_URL environment
// variable, which wins over both.
const DefaultDiscountURL = "http://localhost:9090/discounts"

// Config holds the complete application configuration, loadable from
// environment variables (REGISTER_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (REGISTER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TaxRate     string `default:"0.07" usage:"Sales tax rate applied to the discounted subtotal" flag:"tax-rate"`
	Discount    DiscountConfig
	Scanner     ScannerConfig
	Shortcuts   ShortcutsConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// DiscountConfig controls the discount service client.
type DiscountConfig struct {
	URL     string        `usage:"Discount service endpoint (DISCOUNT_SERVICE_URL wins over this)" flag:"discount-url"`
	Timeout time.Duration `default:"5s" usage:"Discount negotiation request timeout" flag:"discount-timeout"`
}

// ScannerConfig tunes the scan-burst classifier thresholds.
type ScannerConfig struct {
	FastGap          time.Duration `default:"50ms"  usage:"Max inter-character gap within a scan burst" flag:"scanner-fast-gap"`
	InactivityCommit time.Duration `default:"100ms" usage:"Silence before a pending burst commits" flag:"scanner-inactivity-commit"`
	MinLen           int           `default:"2"  usage:"Minimum accepted code length" flag:"scanner-min-len"`
	MaxLen           int           `default:"64" usage:"Maximum accepted code length" flag:"scanner-max-len"`
}

// ShortcutsConfig controls the quick-key shortcut table.
type ShortcutsConfig struct {
	Slots int `default:"12" usage:"Number of quick-key shortcut slots"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers for the
// front-end client.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// ParsedTaxRate parses the configured tax rate.
func (c *Config) ParsedTaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("tax rate %q is negative", c.TaxRate)
	}
	return rate, nil
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "REGISTER",
		Files:     []string{"config.yaml", "/etc/register/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set REGISTER_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps bare environment variable names onto the
// REGISTER_-prefixed configuration. DISCOUNT_SERVICE_URL is applied after
// the loader so the environment wins over flags and files; the hardcoded
// default applies only when nothing set a URL.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("DISCOUNT_SERVICE_URL"); v != "" {
		c.Discount.URL = v
	}
	if c.Discount.URL == "" {
		c.Discount.URL = DefaultDiscountURL
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
