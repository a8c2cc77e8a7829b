package config

import (
	"fmt"
	"time"

	"github.com/teilehaus/searchsync/pkg/config"
)

// Engine selects the index backend.
const (
	EngineMeilisearch = "meilisearch"
	EngineMemory      = "memory"
)

// Config is the full service configuration, loaded from the environment.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"searchsync"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8086"`

	Engine            string `env:"SEARCH_ENGINE" envDefault:"meilisearch"`
	MeiliHost         string `env:"MEILI_HOST" envDefault:"http://localhost:7700"`
	MeiliAPIKey       string `env:"MEILI_API_KEY"`
	ProductIndex      string `env:"PRODUCT_INDEX" envDefault:"products"`
	CategoryIndex     string `env:"CATEGORY_INDEX" envDefault:"product_categories"`
	ReconfigureOnBoot bool   `env:"RECONFIGURE_ON_BOOT" envDefault:"true"`

	CatalogBaseURL       string        `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8081"`
	InventoryBaseURL     string        `env:"INVENTORY_BASE_URL" envDefault:"http://localhost:8082"`
	PublicSalesChannelID string        `env:"PUBLIC_SALES_CHANNEL_ID,required"`
	ExternalCallTimeout  time.Duration `env:"EXTERNAL_CALL_TIMEOUT" envDefault:"10s"`

	KafkaBrokers   []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaGroupID   string   `env:"KAFKA_GROUP_ID" envDefault:"searchsync"`
	KafkaEnabled   bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	EventChunkSize int      `env:"EVENT_CHUNK_SIZE" envDefault:"10"`

	SyncPageSize       int           `env:"SYNC_PAGE_SIZE" envDefault:"50"`
	VisibilityPageSize int           `env:"VISIBILITY_PAGE_SIZE" envDefault:"500"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileWindow    time.Duration `env:"RECONCILE_WINDOW" envDefault:"10m"`
	ReconcileChunkSize int           `env:"RECONCILE_CHUNK_SIZE" envDefault:"20"`

	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"1h"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Engine != EngineMeilisearch && c.Engine != EngineMemory {
		return fmt.Errorf("SEARCH_ENGINE must be %q or %q, got %q", EngineMeilisearch, EngineMemory, c.Engine)
	}
	if c.Engine == EngineMeilisearch && c.MeiliHost == "" {
		return fmt.Errorf("MEILI_HOST is required for the meilisearch engine")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.SyncPageSize < 1 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive")
	}
	if c.ReconcileWindow < c.ReconcileInterval {
		return fmt.Errorf("RECONCILE_WINDOW (%s) must be at least RECONCILE_INTERVAL (%s)", c.ReconcileWindow, c.ReconcileInterval)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development
// environment, which relaxes CORS.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
