package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		Mode           string   `yaml:"mode"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Attempts struct {
		StartGrace       string `yaml:"startGrace"`
		SweepGrace       string `yaml:"sweepGrace"`
		RetentionDays    int    `yaml:"retentionDays"`
		MinRetentionDays int    `yaml:"minRetentionDays"`
	} `yaml:"attempts"`
	Sweeper struct {
		Enabled         *bool  `yaml:"enabled"`
		ExpiredSchedule string `yaml:"expiredSchedule"`
		PurgeSchedule   string `yaml:"purgeSchedule"`
	} `yaml:"sweeper"`
	Leaderboard struct {
		Size     int    `yaml:"size"`
		CacheTTL string `yaml:"cacheTTL"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.RabbitMQ.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Mode == "" {
		c.Server.Mode = ModeProduction
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Leaderboard.Size <= 0 {
		c.Leaderboard.Size = 10
	}
}

// Development reports whether internal error details may be exposed.
func (c Config) Development() bool { return c.Server.Mode == ModeDevelopment }

// SweeperEnabled defaults to true when unset.
func (c Config) SweeperEnabled() bool {
	return c.Sweeper.Enabled == nil || *c.Sweeper.Enabled
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
