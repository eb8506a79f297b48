package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "checkout-service/pkg/aws"
)

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	RedisURL         string
	CartTTL          time.Duration
	StripeSecretKey  string
	KafkaBrokers     []string
	OrderEventsTopic string
	OrderSNSTopicArn string
	JWTSecret        string
	TxMaxRetries     int
	TxRetryBackoff   time.Duration
	AllowedOrigins   string
}

// secretSource is the part of the Secrets Manager client LoadConfig needs.
type secretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8088"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CartTTL:          time.Duration(getEnvInt("CART_TTL_HOURS", 72)) * time.Hour,
		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		OrderSNSTopicArn: os.Getenv("ORDER_SNS_TOPIC_ARN"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TxMaxRetries:     getEnvInt("TX_MAX_RETRIES", 3),
		TxRetryBackoff:   time.Duration(getEnvInt("TX_RETRY_BACKOFF_MS", 100)) * time.Millisecond,
		AllowedOrigins:   os.Getenv("ALLOWED_ORIGINS"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides the database credentials and Stripe key with the
// values stored in Secrets Manager. Missing secrets leave the env values.
func applySecrets(ctx context.Context, cfg *Config, sm secretSource) {
	if dbjson, err := sm.GetSecret(ctx, "checkout/DB_CREDENTIALS"); err == nil && dbjson != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(dbjson), &m); err == nil {
			override(&cfg.PostgresUser, m["POSTGRES_USER"])
			override(&cfg.PostgresPassword, m["POSTGRES_PASSWORD"])
			override(&cfg.PostgresDB, m["POSTGRES_DB"])
			override(&cfg.PostgresHost, m["POSTGRES_HOST"])
			override(&cfg.PostgresPort, m["POSTGRES_PORT"])
		}
	}
	if key, err := sm.GetSecret(ctx, "checkout/STRIPE_SECRET_KEY"); err == nil {
		override(&cfg.StripeSecretKey, strings.TrimSpace(key))
	}
}

func (c *Config) validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.TxMaxRetries < 0 {
		return fmt.Errorf("TX_MAX_RETRIES must not be negative")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
