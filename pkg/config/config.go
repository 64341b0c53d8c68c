package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Application settings
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Meta     MetaConfig     `yaml:"meta"`
	TikTok   TikTokConfig   `yaml:"tiktok"`
	Report   ReportConfig   `yaml:"report"`
	Chat     ChatConfig     `yaml:"chat"`
	Sink     SinkConfig     `yaml:"sink"`
}

// Server settings
type ServerConfig struct {
	Port           string        `yaml:"port" validate:"required,numeric"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

// Logging settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
}

// Shared outbound HTTP behaviour for every upstream client
type UpstreamConfig struct {
	Timeout            time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries         int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoff       time.Duration `yaml:"retry_backoff" validate:"gte=0"`
	RateLimitPerSecond int           `yaml:"rate_limit_per_second" validate:"gt=0"`
	RateLimitBurst     int           `yaml:"rate_limit_burst" validate:"gt=0"`
}

type MetaConfig struct {
	AccessToken      string `yaml:"access_token"`
	AdAccountID      string `yaml:"ad_account_id"`
	BaseURL          string `yaml:"base_url" validate:"required,url"`
	APIVersion       string `yaml:"api_version" validate:"required"`
	ConversionAction string `yaml:"conversion_action" validate:"required"`
	PageLimit        int    `yaml:"page_limit" validate:"gt=0"`
	MaxPages         int    `yaml:"max_pages" validate:"gt=0"`
}

type TikTokConfig struct {
	AccessToken      string `yaml:"access_token"`
	AdvertiserID     string `yaml:"advertiser_id"`
	BaseURL          string `yaml:"base_url" validate:"required,url"`
	ConversionMetric string `yaml:"conversion_metric" validate:"required"`
	MaxRangeDays     int    `yaml:"max_range_days" validate:"gt=0,lte=365"`
	PageSize         int    `yaml:"page_size" validate:"gt=0,lte=1000"`
	MaxPages         int    `yaml:"max_pages" validate:"gt=0"`
}

type ReportConfig struct {
	DefaultLookbackDays int `yaml:"default_lookback_days" validate:"oneof=90 365"`
}

type ChatConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url" validate:"required,url"`
	Model       string  `yaml:"model" validate:"required"`
	MaxHistory  int     `yaml:"max_history" validate:"gte=0"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
}

type SinkConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Secret string `yaml:"secret"`
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if set), then
// environment variables, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			RequestTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Upstream: UpstreamConfig{
			Timeout:            30 * time.Second,
			MaxRetries:         2,
			RetryBackoff:       500 * time.Millisecond,
			RateLimitPerSecond: 10,
			RateLimitBurst:     5,
		},
		Meta: MetaConfig{
			BaseURL:          "https://graph.facebook.com",
			APIVersion:       "v19.0",
			ConversionAction: "offsite_conversion.fb_pixel_purchase",
			PageLimit:        500,
			MaxPages:         10,
		},
		TikTok: TikTokConfig{
			BaseURL:          "https://business-api.tiktok.com",
			ConversionMetric: "conversion",
			MaxRangeDays:     30,
			PageSize:         1000,
			MaxPages:         10,
		},
		Report: ReportConfig{
			DefaultLookbackDays: 90,
		},
		Chat: ChatConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxHistory:  10,
			Temperature: 0.2,
		},
	}
}

func applyEnv(c *Config) {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.RequestTimeout = getDurationEnv("REQUEST_TIMEOUT", c.Server.RequestTimeout)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)

	c.Upstream.Timeout = getDurationEnv("UPSTREAM_TIMEOUT", c.Upstream.Timeout)
	c.Upstream.MaxRetries = getIntEnv("MAX_RETRIES", c.Upstream.MaxRetries)
	c.Upstream.RetryBackoff = getDurationEnv("RETRY_BACKOFF", c.Upstream.RetryBackoff)
	c.Upstream.RateLimitPerSecond = getIntEnv("RATE_LIMIT_PER_SECOND", c.Upstream.RateLimitPerSecond)
	c.Upstream.RateLimitBurst = getIntEnv("RATE_LIMIT_BURST", c.Upstream.RateLimitBurst)

	c.Meta.AccessToken = getEnv("META_ACCESS_TOKEN", c.Meta.AccessToken)
	c.Meta.AdAccountID = getEnv("META_AD_ACCOUNT_ID", c.Meta.AdAccountID)
	c.Meta.BaseURL = getEnv("META_BASE_URL", c.Meta.BaseURL)
	c.Meta.APIVersion = getEnv("META_API_VERSION", c.Meta.APIVersion)
	c.Meta.ConversionAction = getEnv("META_CONVERSION_ACTION", c.Meta.ConversionAction)
	c.Meta.PageLimit = getIntEnv("META_PAGE_LIMIT", c.Meta.PageLimit)
	c.Meta.MaxPages = getIntEnv("META_MAX_PAGES", c.Meta.MaxPages)

	c.TikTok.AccessToken = getEnv("TIKTOK_ACCESS_TOKEN", c.TikTok.AccessToken)
	c.TikTok.AdvertiserID = getEnv("TIKTOK_ADVERTISER_ID", c.TikTok.AdvertiserID)
	c.TikTok.BaseURL = getEnv("TIKTOK_BASE_URL", c.TikTok.BaseURL)
	c.TikTok.ConversionMetric = getEnv("TIKTOK_CONVERSION_METRIC", c.TikTok.ConversionMetric)
	c.TikTok.MaxRangeDays = getIntEnv("TIKTOK_MAX_RANGE_DAYS", c.TikTok.MaxRangeDays)
	c.TikTok.PageSize = getIntEnv("TIKTOK_PAGE_SIZE", c.TikTok.PageSize)
	c.TikTok.MaxPages = getIntEnv("TIKTOK_MAX_PAGES", c.TikTok.MaxPages)

	c.Report.DefaultLookbackDays = getIntEnv("DEFAULT_LOOKBACK_DAYS", c.Report.DefaultLookbackDays)

	c.Chat.APIKey = getEnv("CHAT_API_KEY", c.Chat.APIKey)
	c.Chat.BaseURL = getEnv("CHAT_BASE_URL", c.Chat.BaseURL)
	c.Chat.Model = getEnv("CHAT_MODEL", c.Chat.Model)
	c.Chat.MaxHistory = getIntEnv("CHAT_MAX_HISTORY", c.Chat.MaxHistory)
	c.Chat.Temperature = getFloatEnv("CHAT_TEMPERATURE", c.Chat.Temperature)

	c.Sink.URL = getEnv("SINK_URL", c.Sink.URL)
	c.Sink.Secret = getEnv("SINK_SECRET", c.Sink.Secret)
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// MissingCredentials lists the environment names of absent upstream secrets. Data endpoints
// are only served when it is empty.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Meta.AccessToken == "" {
		missing = append(missing, "META_ACCESS_TOKEN")
	}
	if c.Meta.AdAccountID == "" {
		missing = append(missing, "META_AD_ACCOUNT_ID")
	}
	if c.TikTok.AccessToken == "" {
		missing = append(missing, "TIKTOK_ACCESS_TOKEN")
	}
	if c.TikTok.AdvertiserID == "" {
		missing = append(missing, "TIKTOK_ADVERTISER_ID")
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
