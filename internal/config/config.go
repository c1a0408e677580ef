// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultTaxRate             = "0.08"
	DefaultRecentOrdersLimit   = 10
	DefaultOrderCompletedTopic = "order.completed"
	DefaultReceiptsGroup       = "receipts"
	DefaultCatalogSchema       = "catalog"
)

type Config struct {
	Port                string
	TaxRate             decimal.Decimal
	RecentOrdersLimit   int
	KafkaBrokers        []string
	OrderCompletedTopic string
	ReceiptsGroupID     string
	PostgresURL         string
	CatalogSchema       string
	CatalogProductIDs   []string
	OTLPEndpoint        string
	MailerURL           string
}

// Load reads the environment. defaultPort differs per binary.
func Load(defaultPort string) (Config, error) {
	taxRate, err := decimal.NewFromString(getEnv("TAX_RATE", DefaultTaxRate))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TAX_RATE: %w", err)
	}
	if taxRate.IsNegative() {
		return Config{}, fmt.Errorf("invalid TAX_RATE: %s is negative", taxRate)
	}

	limit, err := getEnvInt("RECENT_ORDERS_LIMIT", DefaultRecentOrdersLimit)
	if err != nil {
		return Config{}, err
	}
	if limit <= 0 {
		return Config{}, fmt.Errorf("invalid RECENT_ORDERS_LIMIT: %d", limit)
	}

	return Config{
		Port:                getEnv("PORT", defaultPort),
		TaxRate:             taxRate,
		RecentOrdersLimit:   limit,
		KafkaBrokers:        getEnvList("KAFKA_BROKERS"),
		OrderCompletedTopic: getEnv("ORDER_COMPLETED_TOPIC", DefaultOrderCompletedTopic),
		ReceiptsGroupID:     getEnv("RECEIPTS_GROUP_ID", DefaultReceiptsGroup),
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		CatalogSchema:       getEnv("CATALOG_SCHEMA", DefaultCatalogSchema),
		CatalogProductIDs:   getEnvList("CATALOG_PRODUCT_IDS"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MailerURL:           os.Getenv("MAILER_URL"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
