package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	AWS     AWSConfig
	Tables  TablesConfig
	Queue   QueueConfig
	Storage StorageConfig
	Orders  OrdersConfig
	Metrics MetricsConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	RunLocal bool
}

type AWSConfig struct {
	Region           string
	EndpointOverride string
}

type TablesConfig struct {
	Orders      string
	Idempotency string
	Projections string
}

type QueueConfig struct {
	URL string
}

type StorageConfig struct {
	Bucket         string
	PresignTTL     time.Duration
	MaxUploadBytes int64
}

type OrdersConfig struct {
	PricingMode           string
	Currency              string
	AlbumPrice            decimal.Decimal
	CollagePrice          decimal.Decimal
	Retention             time.Duration
	IdempotencyTTL        time.Duration
	DefaultPageSize       int
	MaxPageSize           int
	MaxTransitionAttempts int
	RepositoryTimeout     time.Duration
	ProcessingLease       time.Duration
}

type MetricsConfig struct {
	Namespace string
	Enabled   bool
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("RUN_LOCAL", false)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT_OVERRIDE", "")
	v.SetDefault("ORDERS_TABLE", "orders")
	v.SetDefault("IDEMPOTENCY_TABLE", "idempotency")
	v.SetDefault("PROJECTIONS_TABLE", "")
	v.SetDefault("ORDERS_QUEUE_URL", "")
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("PRESIGN_TTL", "1h")
	v.SetDefault("MAX_UPLOAD_MB", 50)
	v.SetDefault("PRICING_MODE", "flat")
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("ALBUM_PRICE", "5.00")
	v.SetDefault("COLLAGE_PRICE", "3.00")
	v.SetDefault("ORDER_RETENTION", "4320h")
	v.SetDefault("IDEMPOTENCY_TTL", "48h")
	v.SetDefault("LIST_DEFAULT_LIMIT", 20)
	v.SetDefault("LIST_MAX_LIMIT", 100)
	v.SetDefault("MAX_TRANSITION_ATTEMPTS", 3)
	v.SetDefault("REPOSITORY_TIMEOUT", "5s")
	v.SetDefault("PROCESSING_LEASE", "15m")
	v.SetDefault("METRICS_NAMESPACE", "PhotobookOrders")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")

	durations := map[string]time.Duration{}
	for _, key := range []string{"PRESIGN_TTL", "ORDER_RETENTION", "IDEMPOTENCY_TTL", "REPOSITORY_TIMEOUT", "PROCESSING_LEASE"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", key, err)
		}
		durations[key] = d
	}

	albumPrice, err := decimal.NewFromString(v.GetString("ALBUM_PRICE"))
	if err != nil {
		return nil, fmt.Errorf("config ALBUM_PRICE: %w", err)
	}
	collagePrice, err := decimal.NewFromString(v.GetString("COLLAGE_PRICE"))
	if err != nil {
		return nil, fmt.Errorf("config COLLAGE_PRICE: %w", err)
	}

	mode := v.GetString("PRICING_MODE")
	if mode != "flat" && mode != "itemized" {
		return nil, fmt.Errorf("config PRICING_MODE: unsupported mode %q", mode)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetInt("SERVER_PORT"),
			RunLocal: v.GetBool("RUN_LOCAL"),
		},
		AWS: AWSConfig{
			Region:           v.GetString("AWS_REGION"),
			EndpointOverride: v.GetString("AWS_ENDPOINT_OVERRIDE"),
		},
		Tables: TablesConfig{
			Orders:      v.GetString("ORDERS_TABLE"),
			Idempotency: v.GetString("IDEMPOTENCY_TABLE"),
			Projections: v.GetString("PROJECTIONS_TABLE"),
		},
		Queue: QueueConfig{
			URL: v.GetString("ORDERS_QUEUE_URL"),
		},
		Storage: StorageConfig{
			Bucket:         v.GetString("STORAGE_BUCKET"),
			PresignTTL:     durations["PRESIGN_TTL"],
			MaxUploadBytes: v.GetInt64("MAX_UPLOAD_MB") * 1024 * 1024,
		},
		Orders: OrdersConfig{
			PricingMode:           mode,
			Currency:              v.GetString("DEFAULT_CURRENCY"),
			AlbumPrice:            albumPrice,
			CollagePrice:          collagePrice,
			Retention:             durations["ORDER_RETENTION"],
			IdempotencyTTL:        durations["IDEMPOTENCY_TTL"],
			DefaultPageSize:       v.GetInt("LIST_DEFAULT_LIMIT"),
			MaxPageSize:           v.GetInt("LIST_MAX_LIMIT"),
			MaxTransitionAttempts: v.GetInt("MAX_TRANSITION_ATTEMPTS"),
			RepositoryTimeout:     durations["REPOSITORY_TIMEOUT"],
			ProcessingLease:       durations["PROCESSING_LEASE"],
		},
		Metrics: MetricsConfig{
			Namespace: v.GetString("METRICS_NAMESPACE"),
			Enabled:   v.GetBool("METRICS_ENABLED"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	return cfg, nil
}
