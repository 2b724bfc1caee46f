package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment. Command flags override it.
type Config struct {
	CatalogURL     string        `env:"SHOP_CATALOG_URL"     envDefault:"http://localhost:8181"`
	WalletURL      string        `env:"SHOP_WALLET_URL"      envDefault:"http://localhost:8183"`
	Username       string        `env:"SHOP_USERNAME"        envDefault:"m.rossini@yopmail.com"`
	Password       string        `env:"SHOP_PASSWORD"        envDefault:"password"`
	RequestTimeout time.Duration `env:"SHOP_REQUEST_TIMEOUT" envDefault:"30s"`
	StepDelay      time.Duration `env:"SHOP_STEP_DELAY"      envDefault:"10s"`
	LogLevel       string        `env:"SHOP_LOG_LEVEL"       envDefault:"info"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"shopctl.runs"`
	DatabaseURL  string   `env:"DATABASE_URL"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.CatalogURL == "":
		return fmt.Errorf("SHOP_CATALOG_URL is required")
	case c.WalletURL == "":
		return fmt.Errorf("SHOP_WALLET_URL is required")
	case c.RequestTimeout <= 0:
		return fmt.Errorf("SHOP_REQUEST_TIMEOUT must be > 0")
	case c.StepDelay < 0:
		return fmt.Errorf("SHOP_STEP_DELAY must be >= 0")
	}
	return nil
}
