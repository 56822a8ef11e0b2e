// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Judge    JudgeConfig    `mapstructure:"judge"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Reward   RewardConfig   `mapstructure:"reward"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// JudgeConfig holds the AI judge client configuration.
type JudgeConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScoringConfig holds the message scorer configuration.
type ScoringConfig struct {
	// MinLength is the minimum trimmed message length that can earn a
	// non-zero score. Anything at or below it short-circuits to zero.
	MinLength int `mapstructure:"min_length"`
	// ZeroPatterns lists low-effort texts (greetings, acks) that always
	// score zero without a judge call. Matched after trim + lower-case.
	ZeroPatterns []string `mapstructure:"zero_patterns"`
	// FallbackCap bounds the deterministic fallback scorer's output.
	FallbackCap float64 `mapstructure:"fallback_cap"`

	// Fallback weights.
	LongMessageBonus  float64 `mapstructure:"long_message_bonus"`
	ExtraLengthBonus  float64 `mapstructure:"extra_length_bonus"`
	QuestionBonus     float64 `mapstructure:"question_bonus"`
	EngagementBonus   float64 `mapstructure:"engagement_bonus"`
	DiversityWeight   float64 `mapstructure:"diversity_weight"`
	SpamPenalty       float64 `mapstructure:"spam_penalty"`
	LongThreshold     int     `mapstructure:"long_threshold"`
	ExtraThreshold    int     `mapstructure:"extra_threshold"`
	QuestionThreshold int     `mapstructure:"question_threshold"`
	// EngagementWords earn the engagement bonus when present.
	EngagementWords []string `mapstructure:"engagement_words"`
}

// RewardConfig holds payout computation configuration.
type RewardConfig struct {
	// Precision is the number of decimal places pool shares are floored
	// to. The rounding residual goes to the top-ranked participant.
	Precision int `mapstructure:"precision"`
	// DefaultRankSplit is the fractional distribution used when a rank
	// event is configured with only a total amount (e.g. 0.5/0.3/0.2).
	DefaultRankSplit []float64 `mapstructure:"default_rank_split"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the
// finalized-event archive. Optional: the engine runs without it.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// EngineConfig holds engine scheduling configuration.
type EngineConfig struct {
	// TickInterval is how often the lazy expiry poll runs. Expiry is
	// still detected on any inbound message; the poll only bounds how
	// long an idle group can stay unfinalized.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	TopNDefault  int           `mapstructure:"top_n_default"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., JUDGE_API_KEY, DATABASE_HOST, METRICS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Judge defaults
	v.SetDefault("judge.base_url", "https://api.openai.com/v1")
	v.SetDefault("judge.model", "gpt-4-turbo")
	v.SetDefault("judge.timeout", "8s")

	// Scoring defaults; the zero set and weights mirror the strict
	// rules the judge prompt enforces, so fallback behavior stays close
	// to judged behavior.
	v.SetDefault("scoring.min_length", 3)
	v.SetDefault("scoring.zero_patterns", []string{
		"ok", "okay", "gm", "gn", "hello", "hi", "hey", "thanks",
		"thank you", "good", "nice", "cool", "awesome", "great",
		"yes", "no", "maybe", "lol", "haha", "wow", "omg",
	})
	v.SetDefault("scoring.fallback_cap", 5.0)
	v.SetDefault("scoring.long_message_bonus", 1.0)
	v.SetDefault("scoring.extra_length_bonus", 2.0)
	v.SetDefault("scoring.question_bonus", 1.5)
	v.SetDefault("scoring.engagement_bonus", 1.0)
	v.SetDefault("scoring.diversity_weight", 1.0)
	v.SetDefault("scoring.spam_penalty", 1.0)
	v.SetDefault("scoring.long_threshold", 20)
	v.SetDefault("scoring.extra_threshold", 50)
	v.SetDefault("scoring.question_threshold", 15)
	v.SetDefault("scoring.engagement_words", []string{
		"explain", "discuss", "think", "opinion", "experience",
		"suggest", "help", "understand",
	})

	// Reward defaults
	v.SetDefault("reward.precision", 2)
	v.SetDefault("reward.default_rank_split", []float64{0.5, 0.3, 0.2})

	// Database defaults (archive is opt-in)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "engagebot")
	v.SetDefault("database.name", "engagebot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	// Engine defaults
	v.SetDefault("engine.tick_interval", "30s")
	v.SetDefault("engine.top_n_default", 10)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
