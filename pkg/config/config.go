package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/hostedpay-rs/hostedpay-go/pkg/gateway"
)

// Config holds the application configuration.
type Config struct {
	Host string
	Port string

	GatewayURL           string
	GatewayAuthorization string
	GatewayTimeout       time.Duration

	LogFormat string // detailed|compact|json|none
	LogLevel  string

	RateLimitPerMinute int
	RateLimitBurst     int
}

const (
	defaultGatewayTimeout     = 30 * time.Second
	defaultRateLimitPerMinute = 120
	defaultRateLimitBurst     = 20
)

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Host:                 getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                 getEnvOrDefault("PORT", "8080"),
		GatewayURL:           os.Getenv("GATEWAY_URL"),
		GatewayAuthorization: os.Getenv("GATEWAY_AUTHORIZATION"),
		GatewayTimeout:       defaultGatewayTimeout,
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "detailed"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		RateLimitPerMinute:   getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", defaultRateLimitPerMinute),
		RateLimitBurst:       getEnvIntOrDefault("RATE_LIMIT_BURST", defaultRateLimitBurst),
	}

	if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
		}
		cfg.GatewayTimeout = d
	}

	return cfg, nil
}

// NewGatewayClient creates a gateway bridge from the configuration.
func (c *Config) NewGatewayClient(opts ...gateway.ClientOption) (*gateway.Client, error) {
	if c.GatewayURL == "" {
		return nil, fmt.Errorf("GATEWAY_URL is not configured")
	}
	if c.GatewayAuthorization == "" {
		return nil, fmt.Errorf("GATEWAY_AUTHORIZATION is not configured")
	}
	opts = append([]gateway.ClientOption{
		gateway.WithHTTPClient(&http.Client{Timeout: c.GatewayTimeout}),
	}, opts...)
	return gateway.NewClient(c.GatewayURL, c.GatewayAuthorization, opts...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
