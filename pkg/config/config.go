package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PRICEWATCH"

// Browser backends.
const (
	BackendChromedp = "chromedp"
	BackendRod      = "rod"
)

// Config holds the application configuration.
type Config struct {
	DatasetPath string `mapstructure:"dataset_path"`

	MaxWorkers          int           `mapstructure:"max_workers"`
	PerAttemptTimeout   time.Duration `mapstructure:"per_attempt_timeout"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay       time.Duration `mapstructure:"retry_max_delay"`
	RetryJitter         time.Duration `mapstructure:"retry_jitter"`
	ProgressLogInterval int           `mapstructure:"progress_log_interval"`
	RateLimitDelay      time.Duration `mapstructure:"rate_limit_delay"`

	// Relative changes at or beyond these fractions raise a price alert.
	PriceDropAlertThreshold float64 `mapstructure:"price_drop_alert_threshold"`
	PriceRiseAlertThreshold float64 `mapstructure:"price_rise_alert_threshold"`

	BrowserBackend         string `mapstructure:"browser_backend"`
	BrowserBin             string `mapstructure:"browser_bin"`
	Headless               bool   `mapstructure:"headless"`
	HumanBehaviorEnabled   bool   `mapstructure:"human_behavior_enabled"`
	UserAgent              string `mapstructure:"user_agent"`
	AcceptLanguage         string `mapstructure:"accept_language"`
	WindowWidth            int    `mapstructure:"window_width"`
	WindowHeight           int    `mapstructure:"window_height"`
	DisableWebRTC          bool   `mapstructure:"disable_webrtc"`
	DisablePasswordManager bool   `mapstructure:"disable_password_manager"`

	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	EmailSender   string `mapstructure:"email_sender"`
	EmailPassword string `mapstructure:"email_password"`
	EmailReceiver string `mapstructure:"email_receiver"`

	PostgresURL   string        `mapstructure:"postgres_url"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RunLockTTL    time.Duration `mapstructure:"run_lock_ttl"`

	Schedule  string `mapstructure:"schedule"`
	HTTPAddr  string `mapstructure:"http_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"dataset_path":               "products.csv",
	"max_workers":                10,
	"per_attempt_timeout":        15 * time.Second,
	"navigation_timeout":         60 * time.Second,
	"retry_attempts":             3,
	"retry_base_delay":           4 * time.Second,
	"retry_max_delay":            10 * time.Second,
	"retry_jitter":               time.Second,
	"progress_log_interval":      5,
	"rate_limit_delay":           time.Minute,
	"price_drop_alert_threshold": 0.10,
	"price_rise_alert_threshold": 0.20,
	"browser_backend":            BackendChromedp,
	"browser_bin":                "",
	"headless":                   true,
	"human_behavior_enabled":     true,
	"user_agent":                 "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"accept_language":            "en-US,en;q=0.9",
	"window_width":               1920,
	"window_height":              1080,
	"disable_webrtc":             true,
	"disable_password_manager":   true,
	"smtp_host":                  "smtp.gmail.com",
	"smtp_port":                  465,
	"email_sender":               "",
	"email_password":             "",
	"email_receiver":             "",
	"postgres_url":               "",
	"redis_addr":                 "",
	"redis_password":             "",
	"redis_db":                   0,
	"run_lock_ttl":               time.Hour,
	"schedule":                   "",
	"http_addr":                  ":8080",
	"log_level":                  "info",
	"log_format":                 "json",
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// The defaults table is static; a decode failure is a programming error.
		panic(err)
	}
	return cfg
}

// Load reads configuration from an optional .env file, the environment and an
// optional config file at path.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.BrowserBackend = strings.ToLower(strings.TrimSpace(cfg.BrowserBackend))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The mail credentials are also accepted under their bare names.
	for _, key := range []string{"email_sender", "email_password", "email_receiver"} {
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), strings.ToUpper(key), key)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// EmailEnabled reports whether mail credentials are configured.
func (c *Config) EmailEnabled() bool {
	return c.EmailSender != "" && c.EmailPassword != "" && c.EmailReceiver != ""
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatasetPath) == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive")
	}
	if c.PerAttemptTimeout <= 0 {
		return fmt.Errorf("per attempt timeout must be positive")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry base delay cannot be negative")
	}
	if c.RetryMaxDelay < 0 {
		return fmt.Errorf("retry max delay cannot be negative")
	}
	if c.RetryMaxDelay > 0 && c.RetryBaseDelay > c.RetryMaxDelay {
		return fmt.Errorf("retry base delay (%s) cannot exceed retry max delay (%s)", c.RetryBaseDelay, c.RetryMaxDelay)
	}
	if c.RetryJitter < 0 {
		return fmt.Errorf("retry jitter cannot be negative")
	}
	if c.ProgressLogInterval <= 0 {
		return fmt.Errorf("progress log interval must be positive")
	}
	if c.RateLimitDelay < 0 {
		return fmt.Errorf("rate limit delay cannot be negative")
	}
	if c.PriceDropAlertThreshold < 0 || c.PriceRiseAlertThreshold < 0 {
		return fmt.Errorf("price alert thresholds cannot be negative")
	}
	if c.BrowserBackend != BackendChromedp && c.BrowserBackend != BackendRod {
		return fmt.Errorf("browser backend must be %s or %s", BackendChromedp, BackendRod)
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return fmt.Errorf("window size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	set := 0
	for _, v := range []string{c.EmailSender, c.EmailPassword, c.EmailReceiver} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("email sender, password and receiver must be set together")
	}
	if set == 3 && (c.SMTPHost == "" || c.SMTPPort <= 0) {
		return fmt.Errorf("smtp host and port are required when email is enabled")
	}

	if c.RunLockTTL <= 0 {
		return fmt.Errorf("run lock ttl must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console")
	}
	return nil
}
