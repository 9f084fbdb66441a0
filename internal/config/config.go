// Package config loads deployment configuration from environment variables.
// Provider credentials and administrator addresses live here only — nothing
// in this struct is ever shipped to the browser.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all deployment-time settings.
type Config struct {
	Addr             string   `env:"BOULDER_ADDR" envDefault:":8080"`
	Env              string   `env:"BOULDER_ENV" envDefault:"development"`
	DBPath           string   `env:"BOULDER_DB_PATH" envDefault:"boulderwall.db"`
	StaticDir        string   `env:"BOULDER_STATIC_DIR" envDefault:"static"`
	ResendKey        string   `env:"BOULDER_RESEND_KEY"`
	ResendFrom       string   `env:"BOULDER_RESEND_FROM" envDefault:"Form Boulder <noreply@formboulder.com>"`
	ReplyTo          string   `env:"BOULDER_REPLY_TO"`
	AdminEmails      []string `env:"BOULDER_ADMIN_EMAILS" envSeparator:","`
	SheetsWebhookURL string   `env:"BOULDER_SHEETS_WEBHOOK_URL"`
	CSRFKey          string   `env:"BOULDER_CSRF_KEY"`
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load parses configuration from the environment.
// POST: Returns a Config or an error naming the offending variable
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate enforces settings that must be present in production. Development
// runs degrade gracefully (noop email sender, sheet delivery disabled).
func (c Config) validate() error {
	if !c.IsProduction() {
		return nil
	}
	if c.ResendKey == "" {
		return errors.New("BOULDER_RESEND_KEY is required in production")
	}
	if c.SheetsWebhookURL == "" {
		return errors.New("BOULDER_SHEETS_WEBHOOK_URL is required in production")
	}
	if len(c.AdminEmails) == 0 {
		return errors.New("BOULDER_ADMIN_EMAILS is required in production")
	}
	return nil
}
