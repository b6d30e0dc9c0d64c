package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings loaded from the environment.
type Config struct {
	Port        string
	Environment string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Upstream market data provider
	ProviderBaseURL string
	ProviderTimeout time.Duration

	// Freshness TTLs per entity type
	ProfileTTL  time.Duration
	PriceTTL    time.Duration
	RatingTTL   time.Duration
	EarningsTTL time.Duration

	// Number of daily price rows kept per symbol (~1 year of trading days)
	PriceWindow int

	// Batch processing
	BatchSize        int
	BatchConcurrency int
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "stocksignals_db"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.marketdata.example.com/v1"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT_SECONDS", 30) * time.Second,

		ProfileTTL:  getEnvDuration("PROFILE_TTL_HOURS", 24) * time.Hour,
		PriceTTL:    getEnvDuration("PRICE_TTL_HOURS", 24) * time.Hour,
		RatingTTL:   getEnvDuration("RATING_TTL_HOURS", 24) * time.Hour,
		EarningsTTL: getEnvDuration("EARNINGS_TTL_HOURS", 168) * time.Hour,

		PriceWindow: getEnvInt("PRICE_WINDOW", 270),

		BatchSize:        getEnvInt("BATCH_SIZE", 50),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 10),
	}

	return config, nil
}

// DSN builds the postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=require TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDuration gets a numeric environment variable as a duration unit count
func getEnvDuration(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue))
}
