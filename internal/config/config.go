// Package config loads and validates registrar configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site         SiteConfig         `mapstructure:"site"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Bot          BotConfig          `mapstructure:"bot"`
	Solver       SolverConfig       `mapstructure:"solver"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// SiteConfig points at the target registration form.
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	FormPath       string `mapstructure:"form_path"`
	AjaxPath       string `mapstructure:"ajax_path"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HTTPConfig configures gateway retry and throttling behavior.
type HTTPConfig struct {
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	MaxRPS           float64 `mapstructure:"max_rps"`
	Burst            int     `mapstructure:"burst"`
}

// BotConfig holds the messaging transport settings.
type BotConfig struct {
	Token  string  `mapstructure:"token"`
	Admins []int64 `mapstructure:"admins"`
}

// SolverConfig controls the captcha-solving service.
type SolverConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	APIKey              string `mapstructure:"api_key"`
	SoftTimeoutSeconds  int    `mapstructure:"soft_timeout_seconds"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
}

// RegistrationConfig governs the orchestrator.
type RegistrationConfig struct {
	MaxCaptchaAttempts int    `mapstructure:"max_captcha_attempts"`
	MaxWorkers         int    `mapstructure:"max_workers"`
	AssignMode         string `mapstructure:"assign_mode"`
	RetryFailedDays    bool   `mapstructure:"retry_failed_days"`
}

// MetricsConfig controls the ops HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Assignment planning modes.
const (
	AssignRoundRobin = "roundrobin"
	AssignBroadcast  = "all"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REGISTRAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://popmartstt.com")
	v.SetDefault("site.form_path", "/popmart")
	v.SetDefault("site.ajax_path", "/Ajax.aspx")
	v.SetDefault("site.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.max_rps", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("solver.enabled", false)
	v.SetDefault("solver.soft_timeout_seconds", 120)
	v.SetDefault("solver.poll_interval_seconds", 5)
	v.SetDefault("registration.max_captcha_attempts", 4)
	v.SetDefault("registration.max_workers", 10)
	v.SetDefault("registration.assign_mode", AssignRoundRobin)
	v.SetDefault("registration.retry_failed_days", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":8080")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if c.Site.TimeoutSeconds <= 0 {
		return fmt.Errorf("site.timeout_seconds must be > 0")
	}
	if c.Bot.Token == "" {
		return fmt.Errorf("bot.token must be set")
	}
	if c.Solver.Enabled && c.Solver.APIKey == "" {
		return fmt.Errorf("solver.api_key must be set when solver is enabled")
	}
	if c.Registration.MaxCaptchaAttempts <= 0 {
		return fmt.Errorf("registration.max_captcha_attempts must be > 0")
	}
	if c.Registration.MaxWorkers <= 0 {
		return fmt.Errorf("registration.max_workers must be > 0")
	}
	switch c.Registration.AssignMode {
	case AssignRoundRobin, AssignBroadcast:
	default:
		return fmt.Errorf("registration.assign_mode must be %q or %q", AssignRoundRobin, AssignBroadcast)
	}
	return nil
}

// SiteTimeout converts the configured site timeout to a duration.
func (c Config) SiteTimeout() time.Duration {
	return time.Duration(c.Site.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the configured initial backoff to a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the configured maximum backoff to a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// SolverSoftTimeout converts the solver soft timeout to a duration.
func (c Config) SolverSoftTimeout() time.Duration {
	return time.Duration(c.Solver.SoftTimeoutSeconds) * time.Second
}

// SolverPollInterval converts the solver poll interval to a duration.
func (c Config) SolverPollInterval() time.Duration {
	return time.Duration(c.Solver.PollIntervalSeconds) * time.Second
}
