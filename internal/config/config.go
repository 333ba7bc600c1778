package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Vision backends
const (
	ProviderService = "service"
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Images   ImagesConfig
	AI       AIConfig
	Queue    QueueConfig
	Hooks    HooksConfig
	LogLevel string
}

type DatabaseConfig struct {
	// Path is a SQLite file, ":memory:" for a throwaway database
	Path string
}

type ImagesConfig struct {
	WebRoot  string
	Download bool
}

type AIConfig struct {
	// Provider selects the vision backend: service, ollama, openai or gemini
	Provider     string
	ServiceURL   string
	Timeout      time.Duration
	RateLimit    int
	AnalyzeCover bool
	OllamaURL    string
	OllamaModel  string
	OpenAIKey    string
	OpenAIModel  string
	GeminiKey    string
	GeminiModel  string
}

type QueueConfig struct {
	Capacity int
}

type HooksConfig struct {
	TrainAfterRun        bool
	VisualIngestAfterRun bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "partalog.db"),
		},
		Images: ImagesConfig{
			WebRoot:  getEnv("WEB_ROOT", "wwwroot"),
			Download: getEnvAsBool("IMAGE_DOWNLOAD", false),
		},
		AI: AIConfig{
			Provider:     strings.ToLower(getEnv("VISION_PROVIDER", ProviderService)),
			ServiceURL:   getEnv("AI_SERVICE_URL", "http://localhost:8000"),
			Timeout:      getEnvAsDuration("AI_SERVICE_TIMEOUT", 5*time.Minute),
			RateLimit:    getEnvAsInt("AI_SERVICE_RATE_LIMIT", 0),
			AnalyzeCover: getEnvAsBool("ANALYZE_COVER", true),
			OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:  getEnv("OLLAMA_MODEL", "mistral-small3.2:24b"),
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),
			GeminiKey:    getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Queue: QueueConfig{
			Capacity: getEnvAsInt("QUEUE_CAPACITY", 100),
		},
		Hooks: HooksConfig{
			TrainAfterRun:        getEnvAsBool("TRAIN_AFTER_RUN", false),
			VisualIngestAfterRun: getEnvAsBool("VISUAL_INGEST_AFTER_RUN", false),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected provider has what it needs
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderService:
		if c.AI.ServiceURL == "" {
			return fmt.Errorf("AI_SERVICE_URL is required for the %s provider", ProviderService)
		}
	case ProviderOllama:
		if c.AI.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required for the %s provider", ProviderOllama)
		}
	case ProviderOpenAI:
		if c.AI.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the %s provider", ProviderOpenAI)
		}
	case ProviderGemini:
		if c.AI.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s provider", ProviderGemini)
		}
	default:
		return fmt.Errorf("unsupported provider: %s", c.AI.Provider)
	}

	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", c.Queue.Capacity)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("300")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
