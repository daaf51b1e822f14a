// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken string   `env:"DISCORD_TOKEN,required,notEmpty"`
	Prefix       string   `env:"COMMAND_PREFIX" envDefault:"."`
	AdminIDs     []string `env:"ADMIN_IDS" envSeparator:","`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogPath     string `env:"LOG_PATH"`

	ShardID    int    `env:"SHARD_ID" envDefault:"0"`
	ShardCount int    `env:"SHARD_COUNT" envDefault:"1"`
	NatsURL    string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`

	HandlerTimeout   time.Duration `env:"HANDLER_TIMEOUT" envDefault:"2m"`
	ShardEvalTimeout time.Duration `env:"SHARD_EVAL_TIMEOUT" envDefault:"5s"`

	GlobalRateLimit  int           `env:"RATE_LIMIT_GLOBAL" envDefault:"60"`
	GlobalRateWindow time.Duration `env:"RATE_WINDOW_GLOBAL" envDefault:"1m"`
	UserRateLimit    int           `env:"RATE_LIMIT_USER" envDefault:"10"`
	UserRateWindow   time.Duration `env:"RATE_WINDOW_USER" envDefault:"30s"`
	GuildRateLimit   int           `env:"RATE_LIMIT_GUILD" envDefault:"30"`
	GuildRateWindow  time.Duration `env:"RATE_WINDOW_GUILD" envDefault:"30s"`

	InitSlashCommands bool `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
}

// New loads the configuration. A missing .env file is fine; required
// variables must then come from the process environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ShardCount < 1 {
		return fmt.Errorf("SHARD_COUNT must be at least 1, got %d", c.ShardCount)
	}
	if c.ShardID < 0 || c.ShardID >= c.ShardCount {
		return fmt.Errorf("SHARD_ID %d out of range [0, %d)", c.ShardID, c.ShardCount)
	}
	if c.Prefix == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be empty")
	}
	return nil
}
