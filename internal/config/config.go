// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment. Binaries import
// github.com/joho/godotenv/autoload so a local .env file is honored too.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	// Port overrides the port of ListenAddr when set, for hosts that only hand out PORT.
	Port           string `env:"PORT"`
	DictionaryPath string `env:"DICTIONARY_PATH" envDefault:"words.txt"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	OutboundQueueSize int           `env:"OUTBOUND_QUEUE_SIZE" envDefault:"100"`
	HubBacklog        int           `env:"HUB_BACKLOG" envDefault:"100"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	PingInterval      time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
	// WaitingTimeout expires games nobody joined. Zero keeps them forever.
	WaitingTimeout time.Duration `env:"WAITING_TIMEOUT" envDefault:"0s"`

	Redis     RedisConfig
	Historian HistorianConfig
	Postgres  PostgresConfig
}

// RedisConfig locates the result queue. An empty Addr disables result archiving.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB" envDefault:"0"`
}

// HistorianConfig tunes the result historian.
type HistorianConfig struct {
	QueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"wordrope_results"`
	BatchSize int    `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushMS   int    `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`
}

// FlushDelay is the interval between timed flushes.
func (h HistorianConfig) FlushDelay() time.Duration {
	return time.Duration(h.FlushMS) * time.Millisecond
}

// PostgresConfig holds the historian's database connection settings.
type PostgresConfig struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE"`
}

// ConnString renders the settings as a postgres:// URL.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port != "" {
		cfg.ListenAddr = ":" + cfg.Port
	}
	if cfg.OutboundQueueSize < 1 {
		return Config{}, fmt.Errorf("OUTBOUND_QUEUE_SIZE must be positive, got %d", cfg.OutboundQueueSize)
	}
	if cfg.HubBacklog < 1 {
		return Config{}, fmt.Errorf("HUB_BACKLOG must be positive, got %d", cfg.HubBacklog)
	}
	return cfg, nil
}
