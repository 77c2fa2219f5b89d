package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type MySQL struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

func (m MySQL) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		m.User, m.Password, m.Host, m.Port, m.Database)
}

type Gateway struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

type Config struct {
	Port          string
	LogLevel      string
	MySQL         MySQL
	RedisAddr     string
	RabbitMQURL   string
	OrderExchange string
	Gateway       Gateway
	OTLPEndpoint  string
}

// Load reads the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		v := strings.TrimSpace(getenv(k))
		if v == "" {
			return def
		}
		return v
	}

	timeoutMS, err := strconv.Atoi(get("GATEWAY_TIMEOUT_MS", "5000"))
	if err != nil || timeoutMS <= 0 {
		return Config{}, fmt.Errorf("GATEWAY_TIMEOUT_MS must be a positive integer, got %q", getenv("GATEWAY_TIMEOUT_MS"))
	}

	redisAddr := get("REDIS_HOST", "")
	if redisAddr != "" && !strings.Contains(redisAddr, ":") {
		redisAddr += ":6379"
	}

	cfg := Config{
		Port:     get("PORT", "8080"),
		LogLevel: get("LOG_LEVEL", "info"),
		MySQL: MySQL{
			User:     get("MYSQL_USER", "root"),
			Password: get("MYSQL_PASSWORD", ""),
			Host:     get("MYSQL_HOST", "localhost"),
			Port:     get("MYSQL_PORT", "3306"),
			Database: get("MYSQL_DATABASE", "checkout"),
		},
		RedisAddr:     redisAddr,
		RabbitMQURL:   get("RABBITMQ_URL", ""),
		OrderExchange: get("ORDER_EXCHANGE", "order.exchange"),
		Gateway: Gateway{
			BaseURL:       strings.TrimRight(get("PAYMENT_GATEWAY_URL", "https://api.razorpay.com"), "/"),
			KeyID:         get("PAYMENT_KEY_ID", ""),
			KeySecret:     get("PAYMENT_KEY_SECRET", ""),
			WebhookSecret: get("PAYMENT_WEBHOOK_SECRET", ""),
			Currency:      get("PAYMENT_CURRENCY", "INR"),
			Timeout:       time.Duration(timeoutMS) * time.Millisecond,
		},
		OTLPEndpoint: get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.Gateway.KeySecret == "" || cfg.Gateway.WebhookSecret == "" {
		return Config{}, errors.New("PAYMENT_KEY_SECRET and PAYMENT_WEBHOOK_SECRET are required")
	}
	return cfg, nil
}
