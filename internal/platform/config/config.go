package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	pstrings "supplyledger/pkg/platform/strings"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the process configuration, read from the environment.
type Config struct {
	Server   Server
	Auth     Auth
	Ledger   Ledger
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"LEDGER_ADDR,default=:8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

type Auth struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER,default=supplyledger"`
	JWTAudience   string `env:"JWT_AUDIENCE,default=supplyledger-api"`
}

type Ledger struct {
	// Admins is a comma separated list of administrator addresses.
	Admins    string        `env:"LEDGER_ADMINS"`
	TxTimeout time.Duration `env:"TX_TIMEOUT,default=5s"`
}

// Database selects the Postgres store; empty URL means in-memory state.
type Database struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS,default=10"`
}

// RedisConfig backs the idempotency store; empty URL means in-process.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	PoolSize       int           `env:"REDIS_POOL_SIZE,default=10"`
	MinIdleConns   int           `env:"REDIS_MIN_IDLE_CONNS,default=2"`
	DialTimeout    time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
	ReadTimeout    time.Duration `env:"REDIS_READ_TIMEOUT,default=3s"`
	WriteTimeout   time.Duration `env:"REDIS_WRITE_TIMEOUT,default=3s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL,default=24h"`
}

// Kafka configures the event relay; no brokers disables it.
type Kafka struct {
	Brokers       string        `env:"KAFKA_BROKERS"`
	Topic         string        `env:"KAFKA_TOPIC,default=supplyledger.events"`
	Partitions    int32         `env:"KAFKA_TOPIC_PARTITIONS,default=3"`
	Replication   int16         `env:"KAFKA_TOPIC_REPLICATION,default=1"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL,default=1s"`
	RelayBatch    int           `env:"RELAY_BATCH_SIZE,default=100"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// AdminList returns the configured administrator addresses.
func (l Ledger) AdminList() []string {
	return splitList(l.Admins)
}

func (k Kafka) BrokerList() []string {
	return splitList(k.Brokers)
}

func (k Kafka) Enabled() bool {
	return len(k.BrokerList()) > 0
}

// UsesDevSigningKey reports whether no signing key was configured.
func (a Auth) UsesDevSigningKey() bool {
	return a.JWTSigningKey == devSigningKey
}

// Load reads an optional .env file and then the environment, so main stays
// lean. Variables already set in the environment win over .env.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.Auth.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.Auth.JWTSigningKey = devSigningKey
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	if c.Ledger.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT must be positive")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func splitList(s string) []string {
	return pstrings.SplitList(s, ",")
}
