package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable, e.g. QUICKPAY_HTTP_PORT.
const EnvPrefix = "QUICKPAY"

// Config aggregates application configuration values.
type Config struct {
	Environment string          `yaml:"environment" envconfig:"ENVIRONMENT" validate:"required"`
	HTTP        HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	Graph       GraphConfig     `yaml:"graph" envconfig:"GRAPH"`
	Warehouse   WarehouseConfig `yaml:"warehouse" envconfig:"WAREHOUSE"`
	Kafka       KafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
	Webhook     WebhookConfig   `yaml:"webhook" envconfig:"WEBHOOK"`
	Paths       PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline    PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Tracing     TracingConfig   `yaml:"tracing" envconfig:"TRACING"`
	Logging     LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MetricsEnabled  bool          `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// GraphConfig describes connectivity to the Neo4j relationship graph.
// An empty URI disables graph loading.
type GraphConfig struct {
	URI            string `yaml:"uri" envconfig:"URI" validate:"omitempty,uri"`
	Database       string `yaml:"database" envconfig:"DATABASE"`
	Username       string `yaml:"username" envconfig:"USERNAME"`
	Password       string `yaml:"password" envconfig:"PASSWORD"`
	MaxConnections int    `yaml:"max_connections" envconfig:"MAX_CONNECTIONS" validate:"gt=0"`
	BatchSize      int    `yaml:"batch_size" envconfig:"BATCH_SIZE" validate:"gt=0"`
	Workers        int    `yaml:"workers" envconfig:"WORKERS" validate:"gt=0"`
}

// WarehouseConfig describes the PostgreSQL analytical store.
type WarehouseConfig struct {
	DSN             string        `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS" validate:"gt=0"`
	ConnectRetries  int           `yaml:"connect_retries" envconfig:"CONNECT_RETRIES" validate:"gte=0"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" envconfig:"CONNECT_BACKOFF"`
	QueryTimeout    time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT" validate:"gt=0"`
	SchemaSnapshot  string        `yaml:"schema_snapshot" envconfig:"SCHEMA_SNAPSHOT"`
	FreshnessMaxAge time.Duration `yaml:"freshness_max_age" envconfig:"FRESHNESS_MAX_AGE" validate:"gte=0"`
}

// KafkaConfig configures the optional event stream publisher.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers" envconfig:"BROKERS"`
	Topic      string   `yaml:"topic" envconfig:"TOPIC"`
	BatchSize  int      `yaml:"batch_size" envconfig:"BATCH_SIZE" validate:"gt=0"`
	RatePerSec float64  `yaml:"rate_per_sec" envconfig:"RATE_PER_SEC" validate:"gte=0"`
}

// WebhookConfig configures quality notifications. An empty URL logs a
// preview instead of sending.
type WebhookConfig struct {
	URL       string        `yaml:"url" envconfig:"URL" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	ReportURL string        `yaml:"report_url" envconfig:"REPORT_URL"`
}

// PathsConfig contains file system locations.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ReportDir string `yaml:"report_dir" envconfig:"REPORT_DIR" validate:"required"`
	ExportDir string `yaml:"export_dir" envconfig:"EXPORT_DIR" validate:"required"`
	Tables    string `yaml:"tables" envconfig:"TABLES"`
}

// PipelineConfig governs flow execution.
type PipelineConfig struct {
	Retries          int           `yaml:"retries" envconfig:"RETRIES" validate:"gte=0"`
	RetryDelay       time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY" validate:"gte=0"`
	MinSuccessRate   float64       `yaml:"min_success_rate" envconfig:"MIN_SUCCESS_RATE" validate:"gte=0,lte=100"`
	AnomalyThreshold float64       `yaml:"anomaly_threshold" envconfig:"ANOMALY_THRESHOLD" validate:"gt=0"`
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format        string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	IncludeCaller bool   `yaml:"include_caller" envconfig:"INCLUDE_CALLER"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Environment: "dev",
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MetricsEnabled:  true,
		},
		Graph: GraphConfig{
			MaxConnections: 10,
			BatchSize:      500,
			Workers:        4,
		},
		Warehouse: WarehouseConfig{
			MaxOpenConns:    8,
			ConnectRetries:  5,
			ConnectBackoff:  2 * time.Second,
			QueryTimeout:    30 * time.Second,
			SchemaSnapshot:  "data/schema_snapshot.json",
			FreshnessMaxAge: 48 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:      "quickpay.events",
			BatchSize:  500,
			RatePerSec: 20,
		},
		Webhook: WebhookConfig{
			Timeout:   10 * time.Second,
			ReportURL: "http://localhost:8080/api/quality/latest",
		},
		Paths: PathsConfig{
			DataDir:   "data",
			ReportDir: "reports",
			ExportDir: "exports",
		},
		Pipeline: PipelineConfig{
			Retries:          1,
			RetryDelay:       3 * time.Minute,
			MinSuccessRate:   85,
			AnomalyThreshold: 3,
		},
		Tracing: TracingConfig{
			ServiceName: "quickpay-dataops",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load layers configuration: defaults, then the YAML file named by
// QUICKPAY_CONFIG (or the first of configs/config.yaml, config.yaml that
// exists), then QUICKPAY_* environment variables. The result is validated.
func Load() (Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// Addr is the listen address of the HTTP server.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func configFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}
	for _, location := range []string{"configs/config.yaml", "config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}
