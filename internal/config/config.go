package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"virtualrag-be/internal/constant"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Rag       RAGConfig
	Document  DocumentConfig
	Chat      ChatConfig
	WebSocket WebSocketConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	SessionLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string // empty disables NATS forwarding
	RedisURL           string // empty uses the in-process lock
}

type AuthConfig struct {
	Password          string // plaintext or bcrypt hash
	FailureCloseDelay time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider       string // "ollama"
	LLMModel          string
	LLMBaseURL        string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	EmbeddingModel    string
	SystemInstruction string
}

type RAGConfig struct {
	VectorBackend  string // "chromem" or "pgvector"
	VectorDBPath   string
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int
	ChunkStrategy  string // "fixed" or "recursive"
	TopK           int
	HistoryWindow  int
}

type DocumentConfig struct {
	AllowedExtensions []string
	MaxFileSizeMB     int
	TempDir           string
}

type ChatConfig struct {
	MaxHistory int
}

type WebSocketConfig struct {
	MaxMessageMB int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8765"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			SessionLogFilePath: getEnv("SESSION_LOG_FILE_PATH", "logs/session.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			Password:          getEnv("SERVER_PASSWORD", "changeme123"),
			FailureCloseDelay: getEnvAsDuration("AUTH_FAILURE_CLOSE_DELAY", 2*time.Second),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama2"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434"),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 2048),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			SystemInstruction: getEnv("SYSTEM_PROMPT", constant.DefaultSystemInstruction),
		},
		Rag: RAGConfig{
			VectorBackend:  getEnv("VECTOR_BACKEND", "chromem"),
			VectorDBPath:   getEnv("VECTOR_DB_PATH", "./vector_db"),
			CollectionName: getEnv("VECTOR_COLLECTION", "documents"),
			ChunkSize:      getEnvAsInt("CHUNK_SIZE", 500),
			ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 50),
			ChunkStrategy:  getEnv("CHUNK_STRATEGY", "fixed"),
			TopK:           getEnvAsInt("TOP_K_RESULTS", 3),
			HistoryWindow:  getEnvAsInt("HISTORY_PROMPT_WINDOW", 3),
		},
		Document: DocumentConfig{
			AllowedExtensions: getEnvAsList("ALLOWED_EXTENSIONS", []string{".pdf", ".txt"}),
			MaxFileSizeMB:     getEnvAsInt("MAX_FILE_SIZE_MB", 50),
			TempDir:           getEnv("UPLOAD_TEMP_DIR", ""),
		},
		Chat: ChatConfig{
			MaxHistory: getEnvAsInt("MAX_CHAT_HISTORY", 100),
		},
		WebSocket: WebSocketConfig{
			MaxMessageMB: getEnvAsInt("WS_MAX_MESSAGE_MB", 80),
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Rag.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Rag.ChunkSize)
	}
	if c.Rag.ChunkOverlap < 0 || c.Rag.ChunkOverlap >= c.Rag.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.Rag.ChunkOverlap)
	}
	if c.Rag.TopK <= 0 {
		return fmt.Errorf("TOP_K_RESULTS must be positive, got %d", c.Rag.TopK)
	}
	if c.Chat.MaxHistory <= 0 {
		return fmt.Errorf("MAX_CHAT_HISTORY must be positive, got %d", c.Chat.MaxHistory)
	}
	if c.Document.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", c.Document.MaxFileSizeMB)
	}
	if len(c.Document.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}
	switch c.Rag.VectorBackend {
	case "chromem":
	case "pgvector":
		if c.Database.Connection == "" {
			return fmt.Errorf("VECTOR_BACKEND=pgvector requires DB_CONNECTION_STRING")
		}
	default:
		return fmt.Errorf("unsupported VECTOR_BACKEND: %s", c.Rag.VectorBackend)
	}
	return nil
}

// MaxFileSizeBytes is the upload limit in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Document.MaxFileSizeMB) * 1024 * 1024
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList reads a comma separated list. Extensions are lowercased and dot-prefixed.
func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(strValue, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
