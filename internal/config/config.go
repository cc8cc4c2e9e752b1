package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Astro      AstroConfig      `yaml:"astro" mapstructure:"astro"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Ranking    RankingConfig    `yaml:"ranking" mapstructure:"ranking"`
	Icebreaker IcebreakerConfig `yaml:"icebreaker" mapstructure:"icebreaker"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AstroConfig holds settings for the chart/score computation service.
type AstroConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// MatchConfig configures the daily match job.
type MatchConfig struct {
	CronSecret string `yaml:"cron_secret" mapstructure:"cron_secret"`
	TopK       int    `yaml:"top_k" mapstructure:"top_k"`
}

// RankingConfig configures the compatibility ranking cache.
type RankingConfig struct {
	TTLHours             int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	BatchSize            int `yaml:"batch_size" mapstructure:"batch_size"`
	CallTimeoutSecs      int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	RecomputeCooldownMin int `yaml:"recompute_cooldown_min" mapstructure:"recompute_cooldown_min"`
}

// IcebreakerConfig configures Claude-generated conversation starters.
type IcebreakerConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	AnthropicKey string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Model        string `yaml:"model" mapstructure:"model"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	Enabled            bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs  int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	PassRateThreshold  float64 `yaml:"pass_rate_threshold" mapstructure:"pass_rate_threshold"`
	FreshCacheMinRatio float64 `yaml:"fresh_cache_min_ratio" mapstructure:"fresh_cache_min_ratio"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SYNASTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("astro.base_url", "http://localhost:9090")
	v.SetDefault("astro.timeout_secs", 30)
	v.SetDefault("astro.rate_limit_rps", 0)
	v.SetDefault("match.top_k", 3)
	v.SetDefault("ranking.ttl_hours", 24)
	v.SetDefault("ranking.batch_size", 5)
	v.SetDefault("ranking.call_timeout_secs", 5)
	v.SetDefault("ranking.recompute_cooldown_min", 60)
	v.SetDefault("icebreaker.enabled", false)
	v.SetDefault("icebreaker.model", "claude-haiku-4-5-20251001")
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.pass_rate_threshold", 0.9)
	v.SetDefault("monitoring.fresh_cache_min_ratio", 0.25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
