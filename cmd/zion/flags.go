package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Address  string `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	DatabaseDriver     string `env:"DATABASE_DRIVER" envDefault:"pgx"`
	DatabaseConnection string `env:"DATABASE_URI"`

	YampiSecret          string `env:"YAMPI_WEBHOOK_SECRET"`
	YampiSignatureHeader string `env:"YAMPI_SIGNATURE_HEADER" envDefault:"X-Yampi-Hmac-SHA256"`
	YampiAllowUnsigned   bool   `env:"YAMPI_ALLOW_UNSIGNED" envDefault:"false"`
	YampiAPIURL          string `env:"YAMPI_API_URL"`
	YampiUserToken       string `env:"YAMPI_USER_TOKEN"`
	YampiUserSecret      string `env:"YAMPI_USER_SECRET"`

	N8NWebhookURL    string        `env:"N8N_WEBHOOK_URL"`
	N8NSecret        string        `env:"N8N_HMAC_SECRET"`
	N8NAllowUnsigned bool          `env:"N8N_ALLOW_UNSIGNED" envDefault:"false"`
	N8NTimeout       time.Duration `env:"N8N_TIMEOUT" envDefault:"30s"`

	IdempotencyBackend string        `env:"IDEMPOTENCY_BACKEND" envDefault:"memory"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencyMaxKeys int           `env:"IDEMPOTENCY_MAX_KEYS" envDefault:"10000"`
	RedisAddr          string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"zion-events"`

	DeliveryWorkers int    `env:"DELIVERY_WORKERS" envDefault:"2"`
	DefaultPlatform string `env:"DEFAULT_PLATFORM" envDefault:"PS5"`
	SaleChannel     string `env:"SALE_CHANNEL" envDefault:"yampi"`

	OperatorLogin        string        `env:"OPERATOR_LOGIN" envDefault:"admin"`
	OperatorPasswordHash string        `env:"OPERATOR_PASSWORD_HASH"`
	JWTSecret            string        `env:"JWT_SECRET"`
	JWTTTL               time.Duration `env:"JWT_TTL" envDefault:"24h"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`

	// HashPassword is set by -hash-password; the binary prints the bcrypt
	// hash and exits.
	HashPassword string
}

func NewConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Database connection string")
	deliveryWorkers := flag.Int("w", cfg.DeliveryWorkers, "Size of mark-delivered worker pool")
	jwtTTL := flag.Duration("t", cfg.JWTTTL, "TTL for JWT token(e.g. 24h; 30m )")
	hashPassword := flag.String("hash-password", "", "Print bcrypt hash for OPERATOR_PASSWORD_HASH and exit")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.DeliveryWorkers = *deliveryWorkers
	cfg.JWTTTL = *jwtTTL
	cfg.HashPassword = *hashPassword

	if cfg.HashPassword != "" {
		return cfg, nil
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("ENV JWT_SECRET must be set")
	}
	switch cfg.IdempotencyBackend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", cfg.IdempotencyBackend)
	}
	return cfg, nil
}
