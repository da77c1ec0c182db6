package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when CONFIG_FILE is not set. A missing file is not an error.
const DefaultConfigFile = "config.yaml"

// Config holds every runtime setting of the bot.
// Values come from config.yaml first, then the environment (which wins), then defaults.
type Config struct {
	Version string `yaml:"-" ignored:"true"`

	// Slack
	SlackBotToken string `yaml:"-" envconfig:"SLACK_BOT_TOKEN"`
	SlackAppToken string `yaml:"-" envconfig:"SLACK_APP_TOKEN"`
	SlackAPIURL   string `yaml:"slack_api_url" envconfig:"SLACK_API_URL"`

	// Market data
	CoinGeckoBaseURL string `yaml:"coingecko_base_url" envconfig:"COINGECKO_BASE_URL"`
	CoinGeckoAPIKey  string `yaml:"-" envconfig:"COINGECKO_API_KEY"`
	PriceFeed        string `yaml:"price_feed" envconfig:"PRICE_FEED"` // coingecko or alpaca
	AlpacaKeyID      string `yaml:"-" envconfig:"APCA_API_KEY_ID"`
	AlpacaSecretKey  string `yaml:"-" envconfig:"APCA_API_SECRET_KEY"`
	// AlpacaPairs maps canonical ids to Alpaca pairs, e.g. ALPACA_PAIRS=bitcoin:BTC/USD,ethereum:ETH/USD.
	// Empty means the built-in list.
	AlpacaPairs       map[string]string `yaml:"alpaca_pairs" envconfig:"ALPACA_PAIRS"`
	RequestTimeoutSec int               `yaml:"request_timeout_sec" envconfig:"REQUEST_TIMEOUT_SEC"`

	// Catalog
	CatalogRefreshMins  int    `yaml:"catalog_refresh_mins" envconfig:"CATALOG_REFRESH_MINS"`
	CatalogSnapshotFile string `yaml:"catalog_snapshot_file" envconfig:"CATALOG_SNAPSHOT_FILE"`

	// Interaction
	PendingTTLSec   int    `yaml:"pending_ttl_sec" envconfig:"PENDING_TTL_SEC"`
	DisplayTimezone string `yaml:"display_timezone" envconfig:"DISPLAY_TIMEZONE"`

	// Admin
	AdminAddr string `yaml:"admin_addr" envconfig:"ADMIN_ADDR"`

	// Logging
	LogFile        string `yaml:"log_file" envconfig:"LOG_FILE"`
	MaxLogSizeMB   int64  `yaml:"max_log_size_mb" envconfig:"MAX_LOG_SIZE_MB"`
	MaxLogBackups  int    `yaml:"max_log_backups" envconfig:"MAX_LOG_BACKUPS"`
	LogLevel       string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat      string `yaml:"log_format" envconfig:"LOG_FORMAT"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
}

// secretVars are printed masked.
var secretVars = map[string]bool{
	"SLACK_BOT_TOKEN":     true,
	"SLACK_APP_TOKEN":     true,
	"COINGECKO_API_KEY":   true,
	"APCA_API_KEY_ID":     true,
	"APCA_API_SECRET_KEY": true,
}

// Load reads .env, the optional YAML file and the environment, applies defaults and validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using system environment variables")
	}

	var cfg Config

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultConfigFile
	}
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logEnvFile()
	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.SlackAPIURL == "" {
		c.SlackAPIURL = "https://slack.com/api"
	}
	if c.CoinGeckoBaseURL == "" {
		c.CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.PriceFeed == "" {
		c.PriceFeed = "coingecko"
	}
	if c.RequestTimeoutSec == 0 {
		c.RequestTimeoutSec = 10
	}
	if c.CatalogRefreshMins == 0 {
		c.CatalogRefreshMins = 60
	}
	if c.PendingTTLSec == 0 {
		c.PendingTTLSec = 900
	}
	if c.LogFile == "" {
		c.LogFile = "crypto_bot.log"
	}
	if c.MaxLogSizeMB == 0 {
		c.MaxLogSizeMB = 10
	}
	if c.MaxLogBackups == 0 {
		c.MaxLogBackups = 3
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate checks required secrets and enumerated values.
func (c *Config) Validate() error {
	var missing []string
	if c.SlackBotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.SlackAppToken == "" {
		missing = append(missing, "SLACK_APP_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	switch c.PriceFeed {
	case "coingecko":
	case "alpaca":
		if c.AlpacaKeyID == "" || c.AlpacaSecretKey == "" {
			return errors.New("price_feed 'alpaca' requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
	default:
		return fmt.Errorf("invalid price_feed '%s': must be 'coingecko' or 'alpaca'", c.PriceFeed)
	}
	if c.RequestTimeoutSec < 0 || c.CatalogRefreshMins < 0 || c.PendingTTLSec < 0 {
		return errors.New("timeouts and intervals must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid display_timezone '%s': %w", c.DisplayTimezone, err)
	}
	return nil
}

// Location is the zone report timestamps are rendered in; the process zone when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.DisplayTimezone)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *Config) CatalogRefreshInterval() time.Duration {
	return time.Duration(c.CatalogRefreshMins) * time.Minute
}

func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLSec) * time.Second
}

// logEnvFile prints the variables defined in .env, masking secrets.
func logEnvFile() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slog.Info("--- .env File Variables ---")
	for _, key := range keys {
		val := envMap[key]
		if secretVars[strings.ToUpper(key)] {
			val = Mask(val)
		}
		slog.Info(fmt.Sprintf("%s=%s", key, val))
	}
}

// Mask hides all but the last four characters of a secret.
func Mask(val string) string {
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}
