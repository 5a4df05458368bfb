package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

func TestLoad_WithEnvVars(t *testing.T) {
	os.Setenv("NUTRIRAG_PORT", "9090")
	os.Setenv("NUTRIRAG_DEBUG", "true")
	os.Setenv("NUTRIRAG_MIN_K", "2")
	os.Setenv("NUTRIRAG_MAX_K", "20")
	os.Setenv("NUTRIRAG_ON_NO_MATCH", "broaden_to_all")
	os.Setenv("NUTRIRAG_DISCLAIMER_MODE", "append")
	os.Setenv("NUTRIRAG_RETRIEVAL_TIMEOUT", "3s")
	os.Setenv("NUTRIRAG_S3_ENDPOINT", "http://localhost:9000")
	os.Setenv("NUTRIRAG_S3_ACCESS_KEY_ID", "key")
	os.Setenv("NUTRIRAG_S3_SECRET_ACCESS_KEY", "secret")
	os.Setenv("NUTRIRAG_OPENAI_API_KEY", "sk-test")
	os.Setenv("NUTRIRAG_CORS_ORIGINS", "http://a.test,http://b.test")
	defer func() {
		os.Unsetenv("NUTRIRAG_PORT")
		os.Unsetenv("NUTRIRAG_DEBUG")
		os.Unsetenv("NUTRIRAG_MIN_K")
		os.Unsetenv("NUTRIRAG_MAX_K")
		os.Unsetenv("NUTRIRAG_ON_NO_MATCH")
		os.Unsetenv("NUTRIRAG_DISCLAIMER_MODE")
		os.Unsetenv("NUTRIRAG_RETRIEVAL_TIMEOUT")
		os.Unsetenv("NUTRIRAG_S3_ENDPOINT")
		os.Unsetenv("NUTRIRAG_S3_ACCESS_KEY_ID")
		os.Unsetenv("NUTRIRAG_S3_SECRET_ACCESS_KEY")
		os.Unsetenv("NUTRIRAG_OPENAI_API_KEY")
		os.Unsetenv("NUTRIRAG_CORS_ORIGINS")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 2, cfg.MinK)
	assert.Equal(t, 20, cfg.MaxK)
	assert.Equal(t, domain.OnNoMatchBroaden, cfg.OnNoMatch)
	assert.Equal(t, domain.DisclaimerAppend, cfg.DisclaimerMode)
	assert.Equal(t, 3*time.Second, cfg.RetrievalTimeout)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, 3, cfg.MinK)
	assert.Equal(t, 15, cfg.MaxK)
	assert.Equal(t, domain.OnNoMatchReject, cfg.OnNoMatch)
	assert.Equal(t, 6, cfg.HistoryWindow)
	assert.Equal(t, domain.DisclaimerModel, cfg.DisclaimerMode)
	assert.Equal(t, 10*time.Second, cfg.RetrievalTimeout)
	assert.Equal(t, 60*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, "memory", cfg.IndexBackend)
	assert.Equal(t, "vectors", cfg.SnapshotDir)
	assert.Equal(t, "nutrirag-vectors", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
}

func TestLoad_InvalidBudgetBounds(t *testing.T) {
	os.Setenv("NUTRIRAG_MIN_K", "10")
	os.Setenv("NUTRIRAG_MAX_K", "5")
	defer func() {
		os.Unsetenv("NUTRIRAG_MIN_K")
		os.Unsetenv("NUTRIRAG_MAX_K")
	}()

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeConfig, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "NUTRIRAG_MAX_K")
}

func TestLoad_InvalidPolicy(t *testing.T) {
	os.Setenv("NUTRIRAG_ON_NO_MATCH", "guess")
	defer os.Unsetenv("NUTRIRAG_ON_NO_MATCH")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUTRIRAG_ON_NO_MATCH")
}

func TestLoad_UnknownEnvironment(t *testing.T) {
	t.Setenv("NUTRIRAG_ENVIRONMENT", "docker")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeConfig, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "NUTRIRAG_ENVIRONMENT")
}

func TestLoad_PgvectorRequiresDatabaseURL(t *testing.T) {
	os.Setenv("NUTRIRAG_INDEX_BACKEND", "pgvector")
	os.Unsetenv("NUTRIRAG_DATABASE_URL")
	defer os.Unsetenv("NUTRIRAG_INDEX_BACKEND")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_MalformedValue(t *testing.T) {
	os.Setenv("NUTRIRAG_MIN_K", "three")
	defer os.Unsetenv("NUTRIRAG_MIN_K")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeConfig, domain.CodeOf(err))
}

func TestHasS3(t *testing.T) {
	cfg := &Config{
		S3Endpoint:  "http://localhost:9000",
		S3AccessKey: "key",
		S3SecretKey: "secret",
	}
	assert.True(t, cfg.HasS3())

	cfg.S3Endpoint = ""
	assert.False(t, cfg.HasS3())
}

func TestHasOpenAI(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "sk-test"}
	assert.True(t, cfg.HasOpenAI())

	cfg.OpenAIAPIKey = ""
	assert.False(t, cfg.HasOpenAI())
}

func TestHasRedis(t *testing.T) {
	assert.True(t, (&Config{RedisAddr: "localhost:6379"}).HasRedis())
	assert.False(t, (&Config{}).HasRedis())
}
