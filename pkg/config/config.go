package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	Log     LogConfig
	Solver  SolverConfig
	Metrics MetricsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig carries the search budget, worker hint, seed and progress
// logging settings read from the environment. Nothing in this module copies
// it into timetable.Options; the driver applies its own defaults to zero
// fields.
type SolverConfig struct {
	MaxTime     time.Duration
	Workers     int
	Seed        int64
	SeedSet     bool
	LogProgress bool
}

// MetricsConfig toggles prometheus registration for solve observations.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Solver = SolverConfig{
		MaxTime:     parseDuration(v.GetString("SOLVER_MAX_TIME"), 10*time.Second),
		Workers:     v.GetInt("SOLVER_WORKERS"),
		Seed:        v.GetInt64("SOLVER_SEED"),
		SeedSet:     v.IsSet("SOLVER_SEED"),
		LogProgress: v.GetBool("SOLVER_LOG_PROGRESS"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_MAX_TIME", "10s")
	v.SetDefault("SOLVER_WORKERS", 8)
	v.SetDefault("SOLVER_LOG_PROGRESS", false)

	v.SetDefault("ENABLE_METRICS", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
