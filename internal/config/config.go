package config

import (
	"fmt"
	"strings"
	"time"

	"shopcore/internal/model"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Shop     ShopConfig
	Tx       TxConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	S3       S3Config
	Tracing  TracingConfig
	CORS     CORSConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string `envconfig:"DB_HOST" default:"localhost"`
	Port            int    `envconfig:"DB_PORT" default:"5432"`
	User            string `envconfig:"DB_USER" default:"postgres"`
	Password        string `envconfig:"DB_PASSWORD"`
	Database        string `envconfig:"DB_NAME" default:"shopcore"`
	SSLMode         string `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxConnections  int    `envconfig:"DB_MAX_CONNECTIONS" default:"25"`
	MinConnections  int    `envconfig:"DB_MIN_CONNECTIONS" default:"5"`
	MaxConnLifetime int    `envconfig:"DB_MAX_CONN_LIFETIME" default:"300"` // seconds
	AutoMigrate     bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"` // "json" or "console"
}

// ShopConfig holds the checkout pricing scalars.
type ShopConfig struct {
	ShippingRate          decimal.Decimal `envconfig:"SHOP_SHIPPING_RATE" default:"5.00"`
	FreeShippingThreshold decimal.Decimal `envconfig:"SHOP_FREE_SHIPPING_THRESHOLD" default:"50.00"`
	TaxRate               decimal.Decimal `envconfig:"SHOP_TAX_RATE" default:"0"`
	TaxInclusive          bool            `envconfig:"SHOP_TAX_INCLUSIVE" default:"false"`
}

// TxConfig controls retries of serialization failures and deadlocks.
type TxConfig struct {
	MaxRetries  int           `envconfig:"TX_MAX_RETRIES" default:"3"`
	BaseBackoff time.Duration `envconfig:"TX_BASE_BACKOFF" default:"20ms"`
}

// RedisConfig holds the cart store connection.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CartTTL  time.Duration `envconfig:"CART_TTL" default:"168h"`
}

// KafkaConfig holds order event publishing configuration.
type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_ORDER_TOPIC" default:"shopcore.orders"`
}

// S3Config holds AWS S3 configuration for purchase order files.
type S3Config struct {
	Enabled bool   `envconfig:"S3_ENABLED" default:"false"`
	Bucket  string `envconfig:"S3_BUCKET"`
	Region  string `envconfig:"S3_REGION" default:"us-east-1"`
	Prefix  string `envconfig:"S3_PREFIX" default:"purchase-orders/"` // Path prefix within bucket
}

// TracingConfig holds OpenTelemetry export configuration.
type TracingConfig struct {
	Enabled        bool   `envconfig:"TRACING_ENABLED" default:"false"`
	ServiceName    string `envconfig:"TRACING_SERVICE_NAME" default:"shopcore"`
	JaegerEndpoint string `envconfig:"JAEGER_ENDPOINT" default:"http://localhost:14268/api/traces"`
}

// CORSConfig holds cross-origin settings for the HTTP API.
type CORSConfig struct {
	AllowOrigins []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	AllowMethods []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,X-Actor-ID,X-Correlation-ID"`
	MaxAge       time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Shop.ShippingRate.IsNegative() {
		return fmt.Errorf("shipping rate cannot be negative")
	}

	if c.Shop.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("free shipping threshold cannot be negative")
	}

	if c.Shop.TaxRate.IsNegative() || c.Shop.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("invalid tax rate: %s (must be between 0 and 100)", c.Shop.TaxRate)
	}

	if c.Tx.MaxRetries < 0 {
		return fmt.Errorf("tx max retries cannot be negative")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("jaeger endpoint is required when tracing is enabled")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Settings converts the shop section into checkout settings.
func (c ShopConfig) Settings() model.ShopSettings {
	return model.ShopSettings{
		ShippingRate:          c.ShippingRate,
		FreeShippingThreshold: c.FreeShippingThreshold,
		TaxRate:               c.TaxRate,
		TaxInclusive:          c.TaxInclusive,
	}
}

// BrokerList returns the brokers as a comma separated string for logging.
func (c KafkaConfig) BrokerList() string {
	return strings.Join(c.Brokers, ",")
}
