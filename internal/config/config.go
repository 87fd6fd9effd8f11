package config

import (
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds client and stub server configuration
type Config struct {
	BaseURL        string        `env:"KONG_BASE_URL" envDefault:"http://localhost:8080"`
	AccountsPath   string        `env:"KONG_ACCOUNTS_PATH" envDefault:"/accounts"`
	AuthPath       string        `env:"KONG_AUTH_PATH" envDefault:"/auth"`
	PropertiesPath string        `env:"KONG_PROPERTIES_PATH" envDefault:"/properties"`
	Timeout        time.Duration `env:"KONG_TIMEOUT" envDefault:"0s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`

	Port            string `env:"APP_PORT" envDefault:"8080"`
	SessionCookie   string `env:"SESSION_COOKIE" envDefault:"sid"`
	SessionSecret   string `env:"SESSION_SECRET" envDefault:"something-very-secret"`
	SessionLifetime int    `env:"SESSION_LIFETIME" envDefault:"3600"`
}

// Load reads an optional .env file from the working directory and then the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	return Parse()
}

func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	return cfg, nil
}
