package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. It is built once at
// startup and handed to each collaborator; nothing reads the environment
// after Load returns.
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort string

	// Database configuration. An empty URL selects the in-memory user store.
	DatabaseURL string

	// Redis configuration (rate limiting and chat session history)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CORS
	AllowedOrigins []string

	// Auth provider (Firebase Identity Toolkit compatible)
	AuthProviderEnabled bool
	AuthAPIKey          string
	AuthProjectID       string
	AuthBaseURL         string
	AuthCertsURL        string

	// Feature API keys; an empty key disables the feature, it never
	// crashes the process.
	MarketAPIKey  string
	WeatherAPIKey string
	DiseaseAPIKey string
	AIAPIKey      string

	// Upstream endpoint overrides, used by tests and self-hosted mirrors
	MarketBaseURL  string
	WeatherBaseURL string
	DiseaseBaseURL string
	AIBaseURL      string
}

// Load builds the configuration from the process environment. A .env file is
// honored when present, matching local development setups.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnv("SERVER_PORT", "5000"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		AuthAPIKey:    getEnv("FIREBASE_API_KEY", ""),
		AuthProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		AuthBaseURL:   getEnv("FIREBASE_AUTH_URL", "https://identitytoolkit.googleapis.com/v1"),
		AuthCertsURL:  getEnv("FIREBASE_CERTS_URL", "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"),

		MarketAPIKey:  getEnv("DATA_GOV_API_KEY", ""),
		WeatherAPIKey: getEnv("OPENWEATHER_API_KEY", ""),
		DiseaseAPIKey: getEnv("PLANT_ID_API_KEY", ""),
		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),

		MarketBaseURL:  getEnv("DATA_GOV_API_URL", "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070"),
		WeatherBaseURL: getEnv("OPENWEATHER_API_URL", "https://api.openweathermap.org/data/2.5"),
		DiseaseBaseURL: getEnv("PLANT_ID_API_URL", "https://api.plant.id/v2/health_assessment"),
		AIBaseURL:      getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta"),
	}

	if dbStr := getEnv("REDIS_DB", ""); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", dbStr, err)
		}
		cfg.RedisDB = db
	}

	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:5173")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	cfg.AuthProviderEnabled = cfg.AuthAPIKey != "" && cfg.AuthProjectID != ""

	logFeatures(cfg)
	return cfg, nil
}

// logFeatures reports which integrations are live so a misconfigured deploy
// is visible in the first lines of output.
func logFeatures(cfg *Config) {
	log.Printf("[Config] auth provider enabled: %v", cfg.AuthProviderEnabled)
	log.Printf("[Config] market API configured: %v", cfg.MarketAPIKey != "")
	log.Printf("[Config] weather API configured: %v", cfg.WeatherAPIKey != "")
	log.Printf("[Config] disease API configured: %v", cfg.DiseaseAPIKey != "")
	log.Printf("[Config] AI chat API configured: %v", cfg.AIAPIKey != "")
	if cfg.DatabaseURL == "" {
		log.Printf("[Config] DATABASE_URL not set, user records will use the in-memory store")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
