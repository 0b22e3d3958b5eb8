package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/billing"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/neon"
)

// Config holds all neon-alerts configuration.
type Config struct {
	Neon    NeonConfig    `mapstructure:"neon"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// NeonConfig defines Neon API access.
type NeonConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APIURL    string        `mapstructure:"api_url"`
	ProjectID string        `mapstructure:"project_id"`
	Source    string        `mapstructure:"source"`
	Plan      string        `mapstructure:"plan"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// WebhookConfig defines where alerts are delivered.
type WebhookConfig struct {
	URL      string `mapstructure:"url"`
	Provider string `mapstructure:"provider"`
	Secret   string `mapstructure:"secret"`
}

// AlertsConfig defines the alert mode and thresholds. Thresholds stay
// strings until Validate so that "unset" and "0" remain distinct.
type AlertsConfig struct {
	Mode              string `mapstructure:"mode"`
	MaxSpendUSD       string `mapstructure:"max_spend_usd"`
	MaxCUUsage        string `mapstructure:"max_cu_usage"`
	MaxStorageGBMonth string `mapstructure:"max_storage_gb_month"`
	MaxEgressGB       string `mapstructure:"max_egress_gb"`
}

// ServerConfig defines the HTTP trigger endpoint used by "serve".
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to their unprefixed environment variables.
var envBindings = map[string]string{
	"neon.api_key":                "NEON_API_KEY",
	"neon.api_url":                "NEON_API_URL",
	"neon.project_id":             "NEON_PROJECT_ID",
	"neon.source":                 "NEON_SOURCE",
	"neon.plan":                   "NEON_PLAN",
	"neon.timeout":                "NEON_TIMEOUT",
	"webhook.url":                 "WEBHOOK_URL",
	"webhook.provider":            "WEBHOOK_PROVIDER",
	"webhook.secret":              "WEBHOOK_SECRET",
	"alerts.mode":                 "ALERT_MODE",
	"alerts.max_spend_usd":        "MAX_SPEND_USD",
	"alerts.max_cu_usage":         "MAX_CU_USAGE",
	"alerts.max_storage_gb_month": "MAX_STORAGE_GB_MONTH",
	"alerts.max_egress_gb":        "MAX_EGRESS_GB",
	"logging.level":               "LOG_LEVEL",
	"logging.format":              "LOG_FORMAT",
}

// Load reads configuration from file, a .env file in the working directory
// and environment variables, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".neon-alerts"))
		v.SetConfigName("neon-alerts")
		v.SetConfigType("yaml")
	}

	// Defaults
	v.SetDefault("neon.api_url", neon.DefaultBaseURL)
	v.SetDefault("neon.source", string(neon.SourceProject))
	v.SetDefault("neon.timeout", 30*time.Second)
	v.SetDefault("webhook.provider", "auto")
	v.SetDefault("alerts.mode", string(model.ModeThresholds))
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("NEON_ALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := mergeDotEnv(v, ".env"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// mergeDotEnv applies values from a dotenv file that the process
// environment does not already provide.
func mergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	dot := viper.New()
	dot.SetConfigFile(path)
	dot.SetConfigType("env")
	if err := dot.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	for key, env := range envBindings {
		if _, set := os.LookupEnv(env); set {
			continue
		}
		if val := dot.GetString(strings.ToLower(env)); val != "" {
			v.Set(key, val)
		}
	}
	return nil
}

// Validate checks everything a billing check needs before any network call.
// All failures are *billing.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.ValidateUsage(); err != nil {
		return err
	}
	if err := c.ValidateWebhook(); err != nil {
		return err
	}
	return c.ValidateAlerts()
}

// ValidateWebhook checks that a delivery target is configured and resolvable.
func (c *Config) ValidateWebhook() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return billing.NewConfigurationError("WEBHOOK_URL", "webhook url is required")
	}
	if _, err := alerts.ResolveTarget(c.Webhook.Provider, c.Webhook.URL); err != nil {
		return billing.NewConfigurationError("WEBHOOK_PROVIDER", "%v", err)
	}
	return nil
}

// ValidateAlerts checks the mode and thresholds.
func (c *Config) ValidateAlerts() error {
	mode, err := c.Mode()
	if err != nil {
		return err
	}
	th, err := c.Thresholds()
	if err != nil {
		return err
	}
	return billing.Validate(th, mode)
}

// ValidateUsage checks only what is needed to fetch and price usage.
func (c *Config) ValidateUsage() error {
	if strings.TrimSpace(c.Neon.APIKey) == "" {
		return billing.NewConfigurationError("NEON_API_KEY", "api key is required")
	}
	if strings.TrimSpace(c.Neon.ProjectID) == "" {
		return billing.NewConfigurationError("NEON_PROJECT_ID", "project id is required")
	}
	if _, err := neon.ParseSource(c.Neon.Source); err != nil {
		return billing.NewConfigurationError("NEON_SOURCE", "%v", err)
	}
	return nil
}

// Mode returns the parsed alert mode.
func (c *Config) Mode() (model.AlertMode, error) {
	mode, err := model.ParseAlertMode(c.Alerts.Mode)
	if err != nil {
		return "", billing.NewConfigurationError("ALERT_MODE", "%v", err)
	}
	return mode, nil
}

// Thresholds parses the configured limits. Blank values are unset.
func (c *Config) Thresholds() (model.Thresholds, error) {
	var th model.Thresholds
	fields := []struct {
		env string
		raw string
		dst *decimal.NullDecimal
	}{
		{"MAX_SPEND_USD", c.Alerts.MaxSpendUSD, &th.MaxSpendUSD},
		{"MAX_CU_USAGE", c.Alerts.MaxCUUsage, &th.MaxCUUsage},
		{"MAX_STORAGE_GB_MONTH", c.Alerts.MaxStorageGBMonth, &th.MaxStorageGBMonth},
		{"MAX_EGRESS_GB", c.Alerts.MaxEgressGB, &th.MaxEgressGB},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return model.Thresholds{}, billing.NewConfigurationError(f.env, "not a number: %q", raw)
		}
		if d.IsNegative() {
			return model.Thresholds{}, billing.NewConfigurationError(f.env, "must not be negative, got %s", raw)
		}
		*f.dst = decimal.NewNullDecimal(d)
	}
	return th, nil
}
