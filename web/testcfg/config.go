// Package testcfg configures the HTTP API acceptance tests from WEB_TEST_* variables.
package testcfg

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/screwyprof/hivestake/pkg/logger"
)

// Config holds knobs for the acceptance suite. The seeded ledger shape is fixed by the
// assertions, so only paths, timeouts and log output are configurable.
type Config struct {
	MigrationsDir string        `env:"WEB_TEST_MIGRATIONS_DIR" envDefault:"../migrator/migrations"`
	SeedTimeout   time.Duration `env:"WEB_TEST_SEED_TIMEOUT" envDefault:"10s"`
	ClientTimeout time.Duration `env:"WEB_TEST_CLIENT_TIMEOUT" envDefault:"5s"`

	LogLevel         string `env:"WEB_TEST_LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly bool   `env:"WEB_TEST_LOG_HUMAN_FRIENDLY" envDefault:"true"`
}

func parseConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads test configuration from environment variables
func New() Config {
	return env.Must(parseConfig())
}

// Logger builds the request logger used by the test server
func (c Config) Logger() *slog.Logger {
	return logger.NewFromConfig(logger.Config{
		LogLevel:         c.LogLevel,
		LogHumanFriendly: c.LogHumanFriendly,
	})
}
