package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config mirrors the layout of config.yaml.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Arena     ArenaConfig     `mapstructure:"arena"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Mode            string        `mapstructure:"mode"`
	Address         string        `mapstructure:"address"`
	AdminToken      string        `mapstructure:"adminToken"`
	Cors            CorsConfig    `mapstructure:"cors"`
	HealthInterval  time.Duration `mapstructure:"healthInterval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig selects the gorm driver and the optional Redis instance.
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Debug  bool        `mapstructure:"debug"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig is optional; an empty address disables the request limiter.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ArenaConfig controls comparison sessions.
type ArenaConfig struct {
	SessionTTL     time.Duration `mapstructure:"sessionTTL"`
	SweepInterval  time.Duration `mapstructure:"sweepInterval"`
	MaxInputLength int           `mapstructure:"maxInputLength"`
	AllowAnonymous bool          `mapstructure:"allowAnonymous"`
}

// SynthesisConfig points at the remote generation router.
type SynthesisConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	AudioDir string        `mapstructure:"audioDir"`
}

// RateLimitConfig holds per-client quotas, counted per minute.
type RateLimitConfig struct {
	GeneratePerMinute int `mapstructure:"generatePerMinute"`
	VotePerMinute     int `mapstructure:"votePerMinute"`
}

// TracingConfig enables OpenTelemetry spans written to stdout.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"serviceName"`
	SampleRatio float64 `mapstructure:"sampleRatio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.healthInterval", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "arena.db")

	v.SetDefault("arena.sessionTTL", 30*time.Minute)
	v.SetDefault("arena.sweepInterval", 15*time.Minute)
	v.SetDefault("arena.maxInputLength", 1000)
	v.SetDefault("arena.allowAnonymous", true)

	v.SetDefault("synthesis.timeout", 60*time.Second)
	v.SetDefault("synthesis.audioDir", "")

	v.SetDefault("ratelimit.generatePerMinute", 10)
	v.SetDefault("ratelimit.votePerMinute", 30)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "arena-ranking-backend")
	v.SetDefault("tracing.sampleRatio", 0.1)
}

// Load reads config.yaml from ./config or the working directory. A missing
// file is not an error: defaults and environment variables still apply,
// e.g. DATABASE_DSN overrides database.dsn.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the arena cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.HealthInterval <= 0 {
		return errors.New("server.healthInterval must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdownTimeout must be positive")
	}
	if c.Arena.SessionTTL <= 0 {
		return errors.New("arena.sessionTTL must be positive")
	}
	if c.Arena.SweepInterval <= 0 {
		return errors.New("arena.sweepInterval must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sampleRatio must be within [0, 1]")
	}
	if c.Arena.MaxInputLength <= 0 {
		return errors.New("arena.maxInputLength must be positive")
	}
	return nil
}
