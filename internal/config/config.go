package config

import (
	"fmt"
	"os"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath       string
	SpoonacularAPIKey  string
	SpoonacularBaseURL string
	JWTSecret          string

	// HTTP server
	HTTPAddr string

	// Optional recipe cache
	RedisAddr string
}

const defaultSpoonacularBaseURL = "https://api.spoonacular.com"

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	databasePath := os.Getenv("DATABASE_PATH")
	if databasePath == "" {
		return nil, fmt.Errorf("DATABASE_PATH environment variable not set")
	}

	apiKey := os.Getenv("SPOONACULAR_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("SPOONACULAR_API_KEY environment variable not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	baseURL := os.Getenv("SPOONACULAR_BASE_URL")
	if baseURL == "" {
		baseURL = defaultSpoonacularBaseURL
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	// Redis is optional; without it every recipe lookup hits the API.
	redisAddr := os.Getenv("REDIS_ADDR")

	return &Config{
		DatabasePath:       databasePath,
		SpoonacularAPIKey:  apiKey,
		SpoonacularBaseURL: baseURL,
		JWTSecret:          jwtSecret,
		HTTPAddr:           httpAddr,
		RedisAddr:          redisAddr,
	}, nil
}
