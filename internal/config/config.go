package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Booking rules
	Booking BookingConfig

	// Catalog cache
	Redis RedisConfig

	// Domain event stream
	Kafka KafkaConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// PaymentConfig holds the hosted payment gateway configuration
type PaymentConfig struct {
	GatewayURL      string   // Hosted payment page the customer is redirected to
	MerchantID      string   // Merchant identifier sent with every redirect
	SigningSecret   string   // Shared HMAC secret (SECRET - never expose to client)
	ReturnURL       string   // Our interactive return endpoint
	NotifyURL       string   // Our out-of-band notification endpoint
	ResultPageURL   string   // Frontend page the customer lands on after return
	Currency        string   // ISO 4217 currency of bookings
	MinorUnitFactor int      // Multiplier from major to gateway minor units
	SuccessCodes    []string // Gateway response codes meaning "paid"
}

// BookingConfig holds booking rules
type BookingConfig struct {
	AllowBundles bool
}

// RedisConfig holds the catalog cache configuration
type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	CatalogTTL time.Duration
}

// KafkaConfig holds the event producer configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRequestLog bool
	EnableAuditLog   bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", false),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Payment: PaymentConfig{
			GatewayURL:      getEnv("PAYMENT_GATEWAY_URL", "https://sandbox.pay.example.com/checkout"),
			MerchantID:      getEnv("PAYMENT_MERCHANT_ID", ""),
			SigningSecret:   getEnv("PAYMENT_SIGNING_SECRET", ""),
			ReturnURL:       getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/api/v1/payments/return"),
			NotifyURL:       getEnv("PAYMENT_NOTIFY_URL", "http://localhost:8080/api/v1/payments/notify"),
			ResultPageURL:   getEnv("PAYMENT_RESULT_PAGE_URL", "http://localhost:3000/payment/result"),
			Currency:        getEnv("PAYMENT_CURRENCY", "VND"),
			MinorUnitFactor: getEnvAsInt("PAYMENT_MINOR_UNIT_FACTOR", 100),
			SuccessCodes:    getEnvAsSlice("PAYMENT_SUCCESS_CODES", []string{"00"}),
		},
		Booking: BookingConfig{
			AllowBundles: getEnvAsBool("BOOKING_ALLOW_BUNDLES", true),
		},
		Redis: RedisConfig{
			Enabled:    getEnvAsBool("REDIS_ENABLED", false),
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			CatalogTTL: time.Duration(getEnvAsInt("REDIS_CATALOG_TTL", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "booking-events"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Payment.MerchantID == "" {
		return fmt.Errorf("PAYMENT_MERCHANT_ID is required")
	}

	if c.Payment.SigningSecret == "" {
		return fmt.Errorf("PAYMENT_SIGNING_SECRET is required")
	}

	if c.Payment.MinorUnitFactor <= 0 {
		return fmt.Errorf("PAYMENT_MINOR_UNIT_FACTOR must be positive, got %d", c.Payment.MinorUnitFactor)
	}

	if len(c.Payment.SuccessCodes) == 0 {
		return fmt.Errorf("PAYMENT_SUCCESS_CODES must list at least one code")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logrus.Warnf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		logrus.Warnf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
