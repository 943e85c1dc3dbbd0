package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	Debug           bool
	AppBaseURL      string
	StaticFilesPath string
	TemplatesPath   string
	MigrationsPath  string
	LogFile         string

	// Remote services
	BackendURL     string
	GameBackendURL string
	AssetBaseURL   string
	BackendTimeout time.Duration
	BackendRPS     float64
	UploadMaxSize  int64

	// Local session store
	DatabaseType    string
	DatabaseURL     string
	DatabasePath    string
	SessionSecret   string
	SessionDuration time.Duration

	// Email (Amazon SES)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		Debug:           getEnvBool("DEBUG", false),
		AppBaseURL:      getEnv("APP_BASE_URL", "http://localhost:8080"),
		StaticFilesPath: getEnv("STATIC_PATH", "./static"),
		TemplatesPath:   getEnv("TEMPLATES_PATH", "./internal/templates"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		LogFile:         getEnv("LOG_FILE", ""),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:3001"),
		GameBackendURL: getEnv("GAME_BACKEND_URL", "http://localhost:3002"),
		AssetBaseURL:   getEnv("ASSET_BASE_URL", "https://api.dicebear.com/9.x"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
		BackendRPS:     getEnvFloat("BACKEND_RPS", 20),
		UploadMaxSize:  10 * 1024 * 1024, // 10MB

		DatabaseType:    getEnv("DATABASE_TYPE", "sqlite"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DatabasePath:    getEnv("DB_PATH", "./edupanel.db"),
		SessionSecret:   getEnv("SESSION_SECRET", "change-me-in-production"),
		SessionDuration: getEnvDuration("SESSION_DURATION", 24*time.Hour),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "EduPanel"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid boolean for %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: invalid number for %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}
