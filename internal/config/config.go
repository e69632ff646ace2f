package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Listing provider API
	ListingAPIBase  string
	ListingAPIToken string

	// Sync engine tuning
	SyncMaxRetries     int
	SyncBreakerTimeout int // seconds the circuit stays open
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-marketplace"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-marketplace"),

		ListingAPIBase:  getEnv("LISTING_API_BASE", "https://mybusiness.googleapis.com/v4"),
		ListingAPIToken: getEnv("LISTING_API_TOKEN", ""),

		SyncMaxRetries:     getEnvInt("SYNC_MAX_RETRIES", 3),
		SyncBreakerTimeout: getEnvInt("SYNC_BREAKER_TIMEOUT", 60),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
