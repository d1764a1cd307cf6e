package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("AGENT_MAX_ITERATIONS", "")
	t.Setenv("SESSION_IDLE_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "qdrant", cfg.Vector.Backend)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 30*time.Minute, cfg.Agent.SessionIdleTimeout)
	assert.Equal(t, 3, cfg.Provider.RetryMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Provider.RetryInitialDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "PGVector")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("EMBEDDING_DIMENSION", "1536")
	t.Setenv("RETRY_MAX_DELAY", "not-a-duration")
	t.Setenv("LOG_JSON", "true")

	cfg := Load()

	assert.Equal(t, "pgvector", cfg.Vector.Backend)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 1536, cfg.Vector.Dimension)
	assert.Equal(t, 32*time.Second, cfg.Provider.RetryMaxDelay)
	assert.True(t, cfg.Server.LogJSON)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Host: "db", Port: "5432", User: "hr", Password: "secret", DBName: "hr_agent"}}

	assert.Equal(t, "host=db port=5432 user=hr password=secret dbname=hr_agent sslmode=disable", cfg.GetDatabaseDSN())
}
