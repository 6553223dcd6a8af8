package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	App       AppConfig
	DB        DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Media     MediaConfig
}

type AppConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`
}

type StorageConfig struct {
	// Driver selects the registry backend: "sqlite" (default) or "postgres".
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
	// DataDir holds the sqlite database and the per-session credential stores.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN returns the connection string in the format pgxpool accepts.
func (cfg DatabaseConfig) DSN() string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
}

type JWTConfig struct {
	Secret   string `env:"JWT_SECRET,required"`
	ExpHours int    `env:"JWT_EXP_HOURS" envDefault:"24"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"debug"`
}

type RateLimitConfig struct {
	Enabled       bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests      int    `env:"RATE_LIMIT_REQUESTS" envDefault:"300"`
	WindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	Prefix        string `env:"RATE_LIMIT_PREFIX" envDefault:"ratelimit:api"`
}

type WebhookConfig struct {
	Workers              int `env:"WEBHOOK_WORKERS" envDefault:"4"`
	MaxAttempts          int `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"5"`
	RetryIntervalSeconds int `env:"WEBHOOK_RETRY_INTERVAL_SECONDS" envDefault:"1"`
	QueueSize            int `env:"WEBHOOK_QUEUE_SIZE" envDefault:"1024"`
}

// RetryInterval is the base delay between delivery attempts; attempt n waits
// (n-1) times this value before running.
func (cfg WebhookConfig) RetryInterval() time.Duration {
	return time.Duration(cfg.RetryIntervalSeconds) * time.Second
}

type MediaConfig struct {
	FFmpegBin string `env:"FFMPEG_BIN" envDefault:"ffmpeg"`
}

// Load reads the application configuration from the environment.
func Load() Config {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: failed to load environment variables: %v", err)
	}
	return cfg
}
