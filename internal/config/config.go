package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"liquorpos/backend/internal/domain"
)

type Config struct {
	Port                   string          `mapstructure:"port"`
	AppEnv                 string          `mapstructure:"app_env"`
	LogLevel               string          `mapstructure:"log_level"`
	AllowedOrigin          string          `mapstructure:"allowed_origin"`
	DatabaseURL            string          `mapstructure:"database_url"`
	RedisAddr              string          `mapstructure:"redis_addr"`
	RedisPassword          string          `mapstructure:"redis_password"`
	RedisDB                int             `mapstructure:"redis_db"`
	AuthSecret             string          `mapstructure:"auth_secret"`
	AccessTokenTTLMinutes  int             `mapstructure:"access_token_ttl_minutes"`
	TaxRateRaw             string          `mapstructure:"tax_rate"`
	TxMaxAttempts          int             `mapstructure:"tx_max_attempts"`
	CatalogCacheTTLSeconds int             `mapstructure:"catalog_cache_ttl_seconds"`
	TaxRate                decimal.Decimal `mapstructure:"-"`
}

var defaults = map[string]any{
	"port":                      "8080",
	"app_env":                   "production",
	"log_level":                 "info",
	"allowed_origin":            "http://127.0.0.1:3000",
	"database_url":              "",
	"redis_addr":                "",
	"redis_password":            "",
	"redis_db":                  0,
	"auth_secret":               "",
	"access_token_ttl_minutes":  480,
	"tax_rate":                  "0.15",
	"tx_max_attempts":           5,
	"catalog_cache_ttl_seconds": 30,
}

// Load reads configuration from the environment. AUTH_SECRET has no default;
// the server refuses to start without one.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.CatalogCacheTTLSeconds < 1 {
		cfg.CatalogCacheTTLSeconds = 30
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.TaxRateRaw))
	if err != nil {
		return Config{}, fmt.Errorf("TAX_RATE %q: %w", cfg.TaxRateRaw, err)
	}
	if err := domain.ValidateTaxRate(rate); err != nil {
		return Config{}, fmt.Errorf("TAX_RATE: %w", err)
	}
	cfg.TaxRate = rate

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Development() bool {
	return c.AppEnv == "development"
}
