package model

import (
	"fmt"
	"time"
)

// ================ Config ================
type StoreConfig struct {
	Driver    string `envconfig:"STORE_DRIVER" default:"redis"`
	KeyPrefix string `envconfig:"STORE_KEY_PREFIX" default:"stock"`
}

type PollerConfig struct {
	Interval       time.Duration `envconfig:"POLL_INTERVAL" default:"5m"`
	MaxConcurrency int           `envconfig:"POLL_MAX_CONCURRENCY" default:"4"`
	RunOnStart     bool          `envconfig:"POLL_RUN_ON_START" default:"true"`
	ShutdownGrace  time.Duration `envconfig:"POLL_SHUTDOWN_GRACE" default:"30s"`
}

func (c PollerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Interval)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("POLL_MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency)
	}
	return nil
}

// CheckGrace rejects a shutdown grace that cannot outlast one started
// product, whose fetch and delivery together take up to inFlight.
func (c PollerConfig) CheckGrace(inFlight time.Duration) error {
	if c.ShutdownGrace <= inFlight {
		return fmt.Errorf("POLL_SHUTDOWN_GRACE (%s) must exceed the in-flight bound of one product (%s)", c.ShutdownGrace, inFlight)
	}
	return nil
}

type InventoryConfig struct {
	URL           string        `envconfig:"INVENTORY_URL" default:"https://lenta.com/api-gateway/v1/catalog/items/stock"`
	Timeout       time.Duration `envconfig:"INVENTORY_TIMEOUT" default:"10s"`
	QuantityField string        `envconfig:"INVENTORY_QUANTITY_FIELD" default:"stock"`
	ProductParam  string        `envconfig:"INVENTORY_PRODUCT_PARAM" default:"id"`
	StoreParam    string        `envconfig:"INVENTORY_STORE_PARAM" default:"storeId"`
	UserAgent     string        `envconfig:"INVENTORY_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

type StatisticsConfig struct {
	Timezone   string `envconfig:"STATS_TIMEZONE" default:"UTC"`
	DateFormat string `envconfig:"STATS_DATE_FORMAT" default:"2006-01-02"`
}

// Location resolves Timezone.
func (c StatisticsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("STATS_TIMEZONE: %w", err)
	}
	return loc, nil
}

type PresenterConfig struct {
	Kind           string        `envconfig:"PRESENTER" default:"log"`
	WebhookURL     string        `envconfig:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
}

// DeliveryTimeout bounds one delivery call of the configured presenter.
func (c PresenterConfig) DeliveryTimeout() time.Duration {
	if c.Kind == "webhook" {
		return c.WebhookTimeout
	}
	return 0
}
