// Package config loads and validates configuration from YAML files with
// environment-variable overrides. It provides typed structs for the emulator
// server (Server, Store, Postgres, Kafka, Redis, Emulator, Auth) and for the
// admin client used by the CLI and the load generator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Emulator EmulatorConfig `yaml:"emulator"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig holds the gRPC and HTTP listener settings of the emulator.
type ServerConfig struct {
	GRPCPort        int           `yaml:"grpcPort"`
	HTTPPort        int           `yaml:"httpPort"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StoreConfig selects the emulator's persistence backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlitePath"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	OperationEvents string `yaml:"operationEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LocationConfig describes one location served by the emulator.
type LocationConfig struct {
	ID          string            `yaml:"id"`
	DisplayName string            `yaml:"displayName"`
	Labels      map[string]string `yaml:"labels"`
}

// EmulatorConfig controls the behaviour of the admin service emulator.
type EmulatorConfig struct {
	// Projects restricts the accepted project IDs. Empty accepts any project.
	Projects        []string         `yaml:"projects"`
	DefaultLocation string           `yaml:"defaultLocation"`
	Locations       []LocationConfig `yaml:"locations"`
	ExportRoot      string           `yaml:"exportRoot"`
	Workers         int              `yaml:"workers"`
	// StepDelay slows each unit of operation work so progress is observable.
	StepDelay       time.Duration `yaml:"stepDelay"`
	DefaultPageSize int           `yaml:"defaultPageSize"`
	MaxPageSize     int           `yaml:"maxPageSize"`
}

// AuthConfig controls API-key authentication and per-key rate limiting.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	StaticKeys []string `yaml:"staticKeys"`
	// UsePostgres looks keys up in the api_keys table as well.
	UsePostgres bool    `yaml:"usePostgres"`
	RateLimit   float64 `yaml:"rateLimit"`
	Burst       int     `yaml:"burst"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"serviceName"`
	SampleRate  float64 `yaml:"sampleRate"`
	PrettyPrint bool    `yaml:"prettyPrint"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ClientConfig configures the admin client.
type ClientConfig struct {
	Endpoint string `yaml:"endpoint"`
	// Transport is "grpc" or "rest".
	Transport      string        `yaml:"transport"`
	Timeout        time.Duration `yaml:"timeout"`
	APIKey         string        `yaml:"apiKey"`
	Insecure       bool          `yaml:"insecure"`
	CircuitBreaker bool          `yaml:"circuitBreaker"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Validate reports settings that would prevent the server or client from
// starting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory", "postgres":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlitePath is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be memory, sqlite or postgres", c.Store.Driver))
	}
	switch c.Client.Transport {
	case "grpc", "rest":
	default:
		errs = append(errs, fmt.Errorf("client.transport %q must be grpc or rest", c.Client.Transport))
	}
	if c.Emulator.Workers < 1 {
		errs = append(errs, errors.New("emulator.workers must be at least 1"))
	}
	if c.Emulator.DefaultPageSize < 1 || c.Emulator.MaxPageSize < c.Emulator.DefaultPageSize {
		errs = append(errs, errors.New("emulator page sizes must satisfy 1 <= defaultPageSize <= maxPageSize"))
	}
	if c.Emulator.DefaultLocation == "" {
		errs = append(errs, errors.New("emulator.defaultLocation is required"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Auth.Enabled && c.Auth.RateLimit < 0 {
		errs = append(errs, errors.New("auth.rateLimit must not be negative"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("tracing.sampleRate must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:        8090,
			HTTPPort:        8091,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Driver:     "memory",
			SQLitePath: "docstore-admin.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docstoreadmin",
			User:            "docstoreadmin",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docstore-admin",
			Topics: KafkaTopics{
				OperationEvents: "admin.operation-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Emulator: EmulatorConfig{
			DefaultLocation: "nam5",
			Locations: []LocationConfig{
				{ID: "nam5", DisplayName: "United States", Labels: map[string]string{"type": "multi-region"}},
				{ID: "eur3", DisplayName: "Europe", Labels: map[string]string{"type": "multi-region"}},
				{ID: "us-east1", DisplayName: "South Carolina", Labels: map[string]string{"type": "region"}},
				{ID: "europe-west1", DisplayName: "Belgium", Labels: map[string]string{"type": "region"}},
			},
			ExportRoot:      "exports",
			Workers:         4,
			StepDelay:       0,
			DefaultPageSize: 100,
			MaxPageSize:     1000,
		},
		Auth: AuthConfig{
			RateLimit: 50,
			Burst:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "docstore-admin",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Client: ClientConfig{
			Endpoint:  "localhost:8090",
			Transport: "grpc",
			Timeout:   60 * time.Second,
			Insecure:  true,
		},
	}
}

// applyEnvOverrides reads DA_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("DA_SERVER_GRPC_PORT", &cfg.Server.GRPCPort)
	setInt("DA_SERVER_HTTP_PORT", &cfg.Server.HTTPPort)
	setString("DA_STORE_DRIVER", &cfg.Store.Driver)
	setString("DA_STORE_SQLITE_PATH", &cfg.Store.SQLitePath)
	setString("DA_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("DA_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("DA_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("DA_POSTGRES_USER", &cfg.Postgres.User)
	setString("DA_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("DA_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setBool("DA_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("DA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("DA_KAFKA_TOPIC_OPERATION_EVENTS", &cfg.Kafka.Topics.OperationEvents)
	setBool("DA_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("DA_REDIS_ADDR", &cfg.Redis.Addr)
	setString("DA_REDIS_PASSWORD", &cfg.Redis.Password)
	if v := os.Getenv("DA_EMULATOR_PROJECTS"); v != "" {
		cfg.Emulator.Projects = strings.Split(v, ",")
	}
	setString("DA_EMULATOR_DEFAULT_LOCATION", &cfg.Emulator.DefaultLocation)
	setString("DA_EMULATOR_EXPORT_ROOT", &cfg.Emulator.ExportRoot)
	setInt("DA_EMULATOR_WORKERS", &cfg.Emulator.Workers)
	setDuration("DA_EMULATOR_STEP_DELAY", &cfg.Emulator.StepDelay)
	setBool("DA_AUTH_ENABLED", &cfg.Auth.Enabled)
	if v := os.Getenv("DA_AUTH_STATIC_KEYS"); v != "" {
		cfg.Auth.StaticKeys = strings.Split(v, ",")
	}
	setString("DA_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("DA_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("DA_TRACING_ENABLED", &cfg.Tracing.Enabled)
	setBool("DA_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("DA_METRICS_PORT", &cfg.Metrics.Port)
	setString("DA_CLIENT_ENDPOINT", &cfg.Client.Endpoint)
	setString("DA_CLIENT_TRANSPORT", &cfg.Client.Transport)
	setDuration("DA_CLIENT_TIMEOUT", &cfg.Client.Timeout)
	setString("DA_CLIENT_API_KEY", &cfg.Client.APIKey)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
