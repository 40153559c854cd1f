package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"hoa-ledger/internal/domain/poll"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"

	// ConfigFileEnv names the optional YAML file read before the environment.
	ConfigFileEnv = "LEDGER_CONFIG_FILE"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type AppConfig struct {
	Port            string        `yaml:"port"            envconfig:"APP_PORT"`
	Mode            string        `yaml:"mode"            envconfig:"APP_MODE"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"APP_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"          envconfig:"DB_DRIVER"`
	Host            string        `yaml:"host"            envconfig:"DB_HOST"`
	Port            string        `yaml:"port"            envconfig:"DB_PORT"`
	User            string        `yaml:"user"            envconfig:"DB_USER"`
	Password        string        `yaml:"password"        envconfig:"DB_PASSWORD"`
	Name            string        `yaml:"name"            envconfig:"DB_NAME"`
	SSLMode         string        `yaml:"sslMode"         envconfig:"DB_SSLMODE"`
	Path            string        `yaml:"path"            envconfig:"DB_PATH"`
	MaxOpenConns    int           `yaml:"maxOpenConns"    envconfig:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns"    envconfig:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" envconfig:"DB_CONN_MAX_LIFETIME"`
	LogQueries      bool          `yaml:"logQueries"      envconfig:"DB_LOG_QUERIES"`
}

type RedisConfig struct {
	Host     string `yaml:"host"     envconfig:"REDIS_HOST"`
	Port     string `yaml:"port"     envconfig:"REDIS_PORT"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       envconfig:"REDIS_DB"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwtSecret"    envconfig:"JWT_SECRET"`
	JWTExpiryMin int    `yaml:"jwtExpiryMin" envconfig:"JWT_EXPIRY_MIN"`
	Issuer       string `yaml:"issuer"       envconfig:"JWT_ISSUER"`
}

type LedgerConfig struct {
	LockBackend      string        `yaml:"lockBackend"      envconfig:"LOCK_BACKEND"`
	LockWait         time.Duration `yaml:"lockWait"         envconfig:"LOCK_WAIT"`
	LockTTL          time.Duration `yaml:"lockTTL"          envconfig:"LOCK_TTL"`
	EnabledPollKinds []string      `yaml:"enabledPollKinds" envconfig:"ENABLED_POLL_KINDS"`

	ReceiptRateLimit  int           `yaml:"receiptRateLimit"  envconfig:"RECEIPT_RATE_LIMIT"`
	ReceiptRateWindow time.Duration `yaml:"receiptRateWindow" envconfig:"RECEIPT_RATE_WINDOW"`
	VoteRateLimit     int           `yaml:"voteRateLimit"     envconfig:"VOTE_RATE_LIMIT"`
	VoteRateWindow    time.Duration `yaml:"voteRateWindow"    envconfig:"VOTE_RATE_WINDOW"`

	OutboxInterval  time.Duration `yaml:"outboxInterval"  envconfig:"OUTBOX_INTERVAL"`
	OutboxBatchSize int           `yaml:"outboxBatchSize" envconfig:"OUTBOX_BATCH_SIZE"`
}

type StorageConfig struct {
	ArchiveBucket   string `yaml:"archiveBucket"   envconfig:"ARCHIVE_BUCKET"`
	Region          string `yaml:"region"          envconfig:"AWS_REGION"`
	Endpoint        string `yaml:"endpoint"        envconfig:"S3_ENDPOINT"`
	AccessKeyID     string `yaml:"accessKeyId"     envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secretAccessKey" envconfig:"AWS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"usePathStyle"    envconfig:"S3_USE_PATH_STYLE"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"serviceName"  envconfig:"OTEL_SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlpEndpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceStdout  bool   `yaml:"traceStdout"  envconfig:"TRACE_STDOUT"`
}

// Default returns the configuration used when neither a file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Port:            "8080",
			Mode:            "debug",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			Name:            "hoa_ledger",
			SSLMode:         "disable",
			Path:            "hoa-ledger.db",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Auth: AuthConfig{
			JWTSecret:    "change-me",
			JWTExpiryMin: 60,
			Issuer:       "hoa-ledger",
		},
		Ledger: LedgerConfig{
			LockBackend:       LockBackendMemory,
			LockWait:          2 * time.Second,
			LockTTL:           10 * time.Second,
			EnabledPollKinds:  []string{"informal", "binding", "straw-poll"},
			ReceiptRateLimit:  30,
			ReceiptRateWindow: time.Minute,
			VoteRateLimit:     10,
			VoteRateWindow:    time.Minute,
			OutboxInterval:    time.Second,
			OutboxBatchSize:   100,
		},
		Storage: StorageConfig{
			Region: "us-east-1",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "hoa-ledger",
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by LEDGER_CONFIG_FILE, then the environment (including a .env file).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return Load(os.Getenv(ConfigFileEnv))
}

// Load is LoadConfig without the .env step.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("ledger", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	switch c.Ledger.LockBackend {
	case LockBackendMemory, LockBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unsupported lock backend %q", c.Ledger.LockBackend))
	}
	if c.Ledger.LockWait <= 0 {
		errs = append(errs, errors.New("lock wait must be positive"))
	}
	if c.Ledger.LockBackend == LockBackendRedis && c.Ledger.LockTTL <= c.Ledger.LockWait {
		errs = append(errs, errors.New("lock ttl must exceed lock wait"))
	}
	for _, kind := range c.Ledger.EnabledPollKinds {
		if !poll.Kind(kind).Valid() {
			errs = append(errs, fmt.Errorf("unknown poll kind %q, expected one of %v", kind, poll.AllKinds))
		}
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Mode == "release" || c.App.Mode == "production"
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}
