package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Firebase
	FirebaseProjectID string
	FirebaseCredJSON  string

	// Generative AI text service (OpenAI-compatible)
	AIBaseURL               string
	AIAPIKey                string
	AIModel                 string
	AIMaxOutputTokens       int
	AITemperature           float64
	AIRequestTimeoutSeconds int

	// Push Notifications
	PushNotificationsEnabled bool

	// Trigger surface
	JobAuthToken string // Shared secret for the internal job endpoints.

	// Batch processing
	BatchWorkerPoolSize     int
	BatchPageSize           int
	BatchUserTimeoutSeconds int

	// In-process scheduler. The external scheduler stays authoritative;
	// this only exists for deployments without one.
	CronEnabled bool

	// Server
	ServerShutdownTimeoutSeconds int

	// Logging
	LogLevel  string
	LogFormat string

	// Notification pipeline tables, loaded from the YAML config file.
	Strategy      StrategyConfig                     `yaml:"strategy"`
	Notifications map[string]*NotificationTypeConfig `yaml:"notifications"`
}

var (
	AppConfig *Config

	DefaultAIRequestTimeout = 30 * time.Second
)

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Firebase
		FirebaseProjectID: getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:  getEnvOrDefault("FIREBASE_CRED_JSON", ""),

		// Generative AI
		AIBaseURL:               getEnvOrDefault("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		AIAPIKey:                getEnvOrDefault("AI_API_KEY", ""),
		AIModel:                 getEnvOrDefault("AI_MODEL", "gemini-2.0-flash"),
		AIMaxOutputTokens:       getEnvAsInt("AI_MAX_OUTPUT_TOKENS", 512),
		AITemperature:           getEnvFloat("AI_TEMPERATURE", 0.8),
		AIRequestTimeoutSeconds: getEnvAsInt("AI_REQUEST_TIMEOUT_SECONDS", 30),

		// Push Notifications
		PushNotificationsEnabled: getEnvOrDefault("PUSH_NOTIFICATIONS_ENABLED", "true") == "true",

		// Trigger surface
		JobAuthToken: getEnvOrDefault("JOB_AUTH_TOKEN", ""),

		// Batch processing
		BatchWorkerPoolSize:     getEnvAsInt("BATCH_WORKER_POOL_SIZE", 8),
		BatchPageSize:           getEnvAsInt("BATCH_PAGE_SIZE", 200),
		BatchUserTimeoutSeconds: getEnvAsInt("BATCH_USER_TIMEOUT_SECONDS", 120),

		// Scheduler
		CronEnabled: getEnvOrDefault("CRON_ENABLED", "false") == "true",

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Load the notification tables from the configuration file.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	log.Printf("Loading config file: %v", configFilePath)

	configFile, err := os.Open(configFilePath)
	defer func() {
		if configFile != nil {
			configFile.Close()
		}
	}()

	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	if err := LoadConfigFile(configFile, AppConfig); err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	AppConfig.Strategy.applyDefaults()

	if len(AppConfig.Notifications) == 0 {
		log.Fatal("Notification type configuration is empty")
	}

	for name, nt := range AppConfig.Notifications {
		if err := nt.validate(); err != nil {
			log.Fatalf("Invalid notification type config %q: %v", name, err)
		}
	}

	if AppConfig.FirebaseProjectID == "" {
		log.Println("Warning: Firebase project ID is missing. Please set FIREBASE_PROJECT_ID environment variable.")
	}

	if AppConfig.AIAPIKey == "" {
		log.Println("Warning: AI API key is missing. Content generation will always fall back to default templates.")
	}

	if AppConfig.JobAuthToken == "" {
		log.Println("Warning: JOB_AUTH_TOKEN is missing. Internal job endpoints will reject all requests.")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as float, using default %f: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}
