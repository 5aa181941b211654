package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/scheduler-api/internal/model"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Waitlist   WaitlistConfig   `mapstructure:"waitlist"`
	Model      ModelConfig      `mapstructure:"model"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// RiskConfig drives threshold mapping, buffer policy and waitlist priority
// scoring. Thresholds must satisfy 0 < low < medium < high <= 1.
type RiskConfig struct {
	LowThreshold    float64 `mapstructure:"low_threshold"`
	MediumThreshold float64 `mapstructure:"medium_threshold"`
	HighThreshold   float64 `mapstructure:"high_threshold"`
	Buffers         Buffers `mapstructure:"buffers"`
	RiskWeight      float64 `mapstructure:"risk_weight"`
	UrgencyWeight   float64 `mapstructure:"urgency_weight"`
}

// Buffers is the per-level trailing buffer table in minutes.
type Buffers struct {
	Low    int `mapstructure:"low"`
	Medium int `mapstructure:"medium"`
	High   int `mapstructure:"high"`
}

type SchedulingConfig struct {
	WorkingHours         model.WorkingHours `mapstructure:"working_hours"`
	SlotMinutes          int                `mapstructure:"slot_minutes"`
	MaxCandidateAttempts int                `mapstructure:"max_candidate_attempts"`
	AllowLowRiskWaitlist bool               `mapstructure:"allow_low_risk_waitlist"`
	HighRiskBoost        float64            `mapstructure:"high_risk_boost"`
}

type WaitlistConfig struct {
	MaxSize             int           `mapstructure:"max_size"`
	MaxContactAttempts  int           `mapstructure:"max_contact_attempts"`
	ContactPollInterval time.Duration `mapstructure:"contact_poll_interval"`
	HighContactEvery    time.Duration `mapstructure:"high_contact_every"`
	MediumContactEvery  time.Duration `mapstructure:"medium_contact_every"`
	LowContactEvery     time.Duration `mapstructure:"low_contact_every"`
}

// ModelConfig points at the external no-show prediction service.
type ModelConfig struct {
	BaseURL     string        `mapstructure:"base_url" envconfig:"MODEL_BASE_URL"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CacheSweep  time.Duration `mapstructure:"cache_sweep"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from"`
	// FrontDesk receives outreach prompts; the engine stores no patient
	// contact details.
	FrontDesk string `mapstructure:"front_desk"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Env overrides for deployment secrets
	if err := envconfig.Process("scheduler", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.request_timeout", "30s")
	viper.SetDefault("server.rate_limit", 100)
	viper.SetDefault("server.rate_burst", 50)

	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", "100ms")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("risk.low_threshold", 0.30)
	viper.SetDefault("risk.medium_threshold", 0.60)
	viper.SetDefault("risk.high_threshold", 1.0)
	viper.SetDefault("risk.buffers.low", 0)
	viper.SetDefault("risk.buffers.medium", 15)
	viper.SetDefault("risk.buffers.high", 30)
	viper.SetDefault("risk.risk_weight", 0.6)
	viper.SetDefault("risk.urgency_weight", 0.4)

	viper.SetDefault("scheduling.working_hours.start", 9)
	viper.SetDefault("scheduling.working_hours.end", 18)
	viper.SetDefault("scheduling.slot_minutes", 30)
	viper.SetDefault("scheduling.max_candidate_attempts", 5)
	viper.SetDefault("scheduling.allow_low_risk_waitlist", false)
	viper.SetDefault("scheduling.high_risk_boost", 0.2)

	viper.SetDefault("waitlist.max_size", 150)
	viper.SetDefault("waitlist.max_contact_attempts", 5)
	viper.SetDefault("waitlist.contact_poll_interval", "1h")
	viper.SetDefault("waitlist.high_contact_every", "24h")
	viper.SetDefault("waitlist.medium_contact_every", "72h")
	viper.SetDefault("waitlist.low_contact_every", "168h")

	viper.SetDefault("model.timeout", "5s")
	viper.SetDefault("model.cache_ttl", "10m")
	viper.SetDefault("model.cache_sweep", "30m")
}

// Validate fails fast on misconfiguration; the process must not start with an
// inconsistent risk or scheduling surface.
func (c *Config) Validate() error {
	r := c.Risk
	if !(0 < r.LowThreshold && r.LowThreshold < r.MediumThreshold && r.MediumThreshold < r.HighThreshold && r.HighThreshold <= 1) {
		return apperrors.InvalidConfiguration(
			fmt.Sprintf("risk thresholds must satisfy 0 < low < medium < high <= 1, got %v < %v < %v",
				r.LowThreshold, r.MediumThreshold, r.HighThreshold), nil)
	}
	if r.Buffers.Low < 0 || r.Buffers.Medium < 0 || r.Buffers.High < 0 {
		return apperrors.InvalidConfiguration("buffer minutes must be non-negative", nil)
	}
	if r.RiskWeight < 0 || r.UrgencyWeight < 0 || r.RiskWeight+r.UrgencyWeight == 0 {
		return apperrors.InvalidConfiguration("priority weights must be non-negative and not both zero", nil)
	}

	s := c.Scheduling
	if s.WorkingHours.Start < 0 || s.WorkingHours.End > 24 || s.WorkingHours.Start >= s.WorkingHours.End {
		return apperrors.InvalidConfiguration("working hours must be an ascending range within a day", nil)
	}
	if s.SlotMinutes <= 0 {
		return apperrors.InvalidConfiguration("slot duration must be positive", nil)
	}
	if s.MaxCandidateAttempts <= 0 {
		return apperrors.InvalidConfiguration("max candidate attempts must be positive", nil)
	}

	w := c.Waitlist
	if w.MaxSize <= 0 {
		return apperrors.InvalidConfiguration("waitlist max size must be positive", nil)
	}
	if w.MaxContactAttempts <= 0 {
		return apperrors.InvalidConfiguration("max contact attempts must be positive", nil)
	}

	return nil
}
