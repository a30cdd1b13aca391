package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fakturnik/internal/logger"
)

// Match keys accepted for customer de-duplication. Which attribute
// identifies "the same customer" is a jurisdictional choice, so it is
// configuration rather than a hard-coded rule.
const (
	MatchByNationalID = "national_id"
	MatchByTaxID      = "tax_id"
	MatchByName       = "name"
)

type Config struct {
	// Storage
	DBPath string

	// Invoicing
	Currency            string
	TaxRates            []decimal.Decimal // allowed rates, percent
	TaxIDLength         int               // PIB digits
	NationalIDLength    int               // matični broj digits
	InvoicePrefix       string
	InvoiceYearScoped   bool
	InvoiceCounterWidth int

	// Customer identity
	CustomerMatchKey string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		DBPath:              getEnv("FAKTURNIK_DB", "fakturnik.db"),
		Currency:            getEnv("FAKTURNIK_CURRENCY", "RSD"),
		TaxIDLength:         getEnvInt("FAKTURNIK_TAX_ID_LENGTH", 9),
		NationalIDLength:    getEnvInt("FAKTURNIK_NATIONAL_ID_LENGTH", 8),
		InvoicePrefix:       getEnv("FAKTURNIK_INVOICE_PREFIX", ""),
		InvoiceYearScoped:   getEnvBool("FAKTURNIK_INVOICE_YEAR_SCOPED", true),
		InvoiceCounterWidth: getEnvInt("FAKTURNIK_INVOICE_COUNTER_WIDTH", 6),
		CustomerMatchKey:    getEnv("FAKTURNIK_CUSTOMER_MATCH_KEY", MatchByNationalID),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:           getEnv("LOG_OUTPUT", "stderr"),
	}

	rates, err := parseRates(getEnv("FAKTURNIK_TAX_RATES", "0,10,20"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.TaxRates = rates

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("FAKTURNIK_DB is required")
	}
	if len(c.TaxRates) == 0 {
		return fmt.Errorf("FAKTURNIK_TAX_RATES must name at least one rate")
	}
	if c.InvoiceCounterWidth < 1 || c.InvoiceCounterWidth > 18 {
		return fmt.Errorf("FAKTURNIK_INVOICE_COUNTER_WIDTH must be between 1 and 18, got %d", c.InvoiceCounterWidth)
	}
	switch c.CustomerMatchKey {
	case MatchByNationalID, MatchByTaxID, MatchByName:
	default:
		return fmt.Errorf("FAKTURNIK_CUSTOMER_MATCH_KEY must be one of %s, %s, %s",
			MatchByNationalID, MatchByTaxID, MatchByName)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func parseRates(raw string) ([]decimal.Decimal, error) {
	parts := strings.Split(raw, ",")
	rates := make([]decimal.Decimal, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rate, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("invalid tax rate %q: %w", p, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("tax rate %q must not be negative", p)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
