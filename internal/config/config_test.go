package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_MODEL", "llama3.1")
	t.Setenv("LLM_BASE_URL", "http://localhost:8000/v1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.HistoryDepth)
	assert.Equal(t, 3, cfg.Pipeline.RetrieveDocs)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.GateTimeout)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.RetrievalTimeout)
	assert.Equal(t, 120*time.Second, cfg.Pipeline.CompletionTimeout)
	assert.False(t, cfg.Pipeline.PersistPartialOnCancel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/chat_history.db", cfg.Database.Path)
	assert.Equal(t, "none", cfg.Retrieval.Backend)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_MODEL", "llama3.1")
	t.Setenv("HISTORY_DEPTH", "8")
	t.Setenv("COMPLETION_TIMEOUT", "45s")
	t.Setenv("PERSIST_PARTIAL_ON_CANCEL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pipeline.HistoryDepth)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.CompletionTimeout)
	assert.True(t, cfg.Pipeline.PersistPartialOnCancel)
}

func TestValidate_ListsEveryProblem(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{Driver: "sqlite", Path: "x.db"},
		Ai:        AIConfig{LLMProvider: "openai"},
		Retrieval: RetrievalConfig{Backend: "pgvector"},
		Pipeline:  PipelineConfig{HistoryDepth: 5, RetrieveDocs: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)

	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.ElementsMatch(t, []string{
		"LLM_MODEL is required",
		"LLM_BASE_URL is required for the openai provider",
		"RETRIEVER_BACKEND=pgvector requires DB_DRIVER=postgres",
		"RETRIEVE_DOCS must be at least 1",
	}, cerr.Problems)
}

func TestLoadDatabase(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_CONNECTION_STRING", "")

	_, err := LoadDatabase()
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"DB_CONNECTION_STRING is required for the postgres driver"}, cerr.Problems)
}
