package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Retrieval RetrievalConfig
	Pipeline  PipelineConfig
}

type AppConfig struct {
	Port               string `env:"APP_PORT" envDefault:"3000"`
	Environment        string `env:"GO_ENV" envDefault:"development"`
	LogFilePath        string `env:"LOG_FILE_PATH" envDefault:"logs/app.log"`
	StreamLogFilePath  string `env:"STREAM_LOG_FILE_PATH" envDefault:"logs/stream.log"`
	CorsAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173"`
	NatsURL            string `env:"NATS_URL"`
	RedisURL           string `env:"REDIS_URL"`
	OtelEnabled        bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OtelEndpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

type DatabaseConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"sqlite"`
	Path       string `env:"DB_PATH" envDefault:"data/chat_history.db"`
	Connection string `env:"DB_CONNECTION_STRING"`
}

type APIKeys struct {
	LLM          string `env:"LLM_API_KEY"`
	GoogleGemini string `env:"GOOGLE_GEMINI_API_KEY"`
	Qdrant       string `env:"QDRANT_API_KEY"`
}

type AIConfig struct {
	LLMProvider       string `env:"LLM_PROVIDER" envDefault:"openai"` // "openai" (any compatible endpoint) or "ollama"
	LLMBaseURL        string `env:"LLM_BASE_URL"`
	LLMModel          string `env:"LLM_MODEL"`
	EmbeddingProvider string `env:"EMBEDDING_PROVIDER" envDefault:"ollama"` // "gemini" or "ollama"
	OllamaBaseURL     string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaModel       string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
}

type RetrievalConfig struct {
	Backend          string `env:"RETRIEVER_BACKEND" envDefault:"none"` // "pgvector", "qdrant" or "none"
	QdrantURL        string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"passages"`
}

type PipelineConfig struct {
	HistoryDepth           int           `env:"HISTORY_DEPTH" envDefault:"5"`
	RetrieveDocs           int           `env:"RETRIEVE_DOCS" envDefault:"3"`
	GateTimeout            time.Duration `env:"GATE_TIMEOUT" envDefault:"15s"`
	RetrievalTimeout       time.Duration `env:"RETRIEVAL_TIMEOUT" envDefault:"20s"`
	CompletionTimeout      time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"120s"`
	PersistPartialOnCancel bool          `env:"PERSIST_PARTIAL_ON_CANCEL" envDefault:"false"`
}

// ConfigurationError lists every setting that is missing or invalid.
// It is fatal at startup.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigurationError{Problems: []string{err.Error()}}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that never talk
// to a model.
func LoadDatabase() (*DatabaseConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigurationError{Problems: []string{err.Error()}}
	}
	if problems := cfg.validate(); len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}
	return cfg, nil
}

func (d *DatabaseConfig) validate() []string {
	switch d.Driver {
	case "sqlite":
		if d.Path == "" {
			return []string{"DB_PATH is required for the sqlite driver"}
		}
	case "postgres":
		if d.Connection == "" {
			return []string{"DB_CONNECTION_STRING is required for the postgres driver"}
		}
	default:
		return []string{fmt.Sprintf("unsupported DB_DRIVER %q", d.Driver)}
	}
	return nil
}

func (c *Config) Validate() error {
	problems := c.Database.validate()

	if c.Ai.LLMModel == "" {
		problems = append(problems, "LLM_MODEL is required")
	}
	switch c.Ai.LLMProvider {
	case "openai":
		if c.Ai.LLMBaseURL == "" {
			problems = append(problems, "LLM_BASE_URL is required for the openai provider")
		}
	case "ollama":
	default:
		problems = append(problems, fmt.Sprintf("unsupported LLM_PROVIDER %q", c.Ai.LLMProvider))
	}

	switch c.Retrieval.Backend {
	case "none", "qdrant":
	case "pgvector":
		if c.Database.Driver != "postgres" {
			problems = append(problems, "RETRIEVER_BACKEND=pgvector requires DB_DRIVER=postgres")
		}
		if c.Ai.EmbeddingProvider == "gemini" && c.Keys.GoogleGemini == "" {
			problems = append(problems, "GOOGLE_GEMINI_API_KEY is required for the gemini embedding provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported RETRIEVER_BACKEND %q", c.Retrieval.Backend))
	}

	if c.Pipeline.HistoryDepth < 0 {
		problems = append(problems, "HISTORY_DEPTH must not be negative")
	}
	if c.Pipeline.RetrieveDocs < 1 {
		problems = append(problems, "RETRIEVE_DOCS must be at least 1")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
