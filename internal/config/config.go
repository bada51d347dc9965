package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Knowledge KnowledgeConfig
	Storage   StorageConfig
	Sessions  SessionsConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	GatewayLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	AdminGroup         string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider       string // "ollama" or "openai"
	LLMModel          string // e.g. "llama3", "gpt-4o-mini"
	AuxLLMProvider    string // rewrite, title and follow-ups
	AuxLLMModel       string
	OllamaBaseURL     string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	EmbeddingProvider string // "ollama" or "openai"
	EmbeddingModel    string
	WatchdogTimeout   time.Duration
	FramingMode       string // "v1", "sentinel" or "eof"
	HistoryTurns      int
	RewriteTurns      int
}

type KnowledgeConfig struct {
	TopK           int
	Threshold      float64
	MaxQueryLength int
	IndexID        string
	Mode           string // "vector" or "keyword"
	SortByRecency  bool
}

type StorageConfig struct {
	Backend         string // "gcs" or "file"
	Bucket          string
	TemplateKey     string
	CredentialsPath string
	LocalDir        string
}

type SessionsConfig struct {
	Subject        string
	RequestTimeout time.Duration
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			GatewayLogFilePath: getEnv("GATEWAY_LOG_FILE_PATH", "logs/gateway.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			AdminGroup:         getEnv("ADMIN_GROUP", "AdminUsers"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			AuxLLMProvider:    getEnv("AUX_LLM_PROVIDER", getEnv("LLM_PROVIDER", "ollama")),
			AuxLLMModel:       getEnv("AUX_LLM_MODEL", getEnv("LLM_MODEL", "llama3")),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			WatchdogTimeout:   getEnvAsDuration("STREAM_WATCHDOG_TIMEOUT", 60*time.Second),
			FramingMode:       getEnv("FRAMING_MODE", "v1"),
			HistoryTurns:      getEnvAsInt("GENERATION_HISTORY_TURNS", 5),
			RewriteTurns:      getEnvAsInt("REWRITE_HISTORY_TURNS", 3),
		},
		Knowledge: KnowledgeConfig{
			TopK:           getEnvAsInt("KNOWLEDGE_TOP_K", 12),
			Threshold:      getEnvAsFloat("KNOWLEDGE_THRESHOLD", 0.5),
			MaxQueryLength: getEnvAsInt("KNOWLEDGE_MAX_QUERY_LENGTH", 999),
			IndexID:        getEnv("KNOWLEDGE_INDEX_ID", "default"),
			Mode:           getEnv("KNOWLEDGE_SEARCH_MODE", "vector"),
			SortByRecency:  getEnvAsBool("KNOWLEDGE_SORT_BY_RECENCY", false),
		},
		Storage: StorageConfig{
			Backend:         getEnv("PROMPT_STORAGE_BACKEND", "file"),
			Bucket:          getEnv("PROMPT_BUCKET", ""),
			TemplateKey:     getEnv("PROMPT_TEMPLATE_KEY", "system-prompt.txt"),
			CredentialsPath: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			LocalDir:        getEnv("PROMPT_LOCAL_DIR", "prompts"),
		},
		Sessions: SessionsConfig{
			Subject:        getEnv("SESSIONS_SUBJECT", "sessions.handler"),
			RequestTimeout: getEnvAsDuration("SESSIONS_REQUEST_TIMEOUT", 10*time.Second),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// Accepts Go duration strings ("45s") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
