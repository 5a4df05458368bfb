package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

const envPrefix = "NUTRIRAG"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"local" validate:"oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`

	// Routing
	MinK              int                    `envconfig:"MIN_K" default:"3" validate:"gte=1"`
	MaxK              int                    `envconfig:"MAX_K" default:"15" validate:"gtefield=MinK"`
	OnNoMatch         domain.OnNoMatchPolicy `envconfig:"ON_NO_MATCH" default:"reject" validate:"oneof=reject broaden_to_all"`
	HistoryWindow     int                    `envconfig:"HISTORY_WINDOW" default:"6" validate:"gte=0"`
	DisclaimerMode    domain.DisclaimerMode  `envconfig:"DISCLAIMER_MODE" default:"model" validate:"oneof=model append"`
	RetrievalTimeout  time.Duration          `envconfig:"RETRIEVAL_TIMEOUT" default:"10s" validate:"gt=0"`
	GenerationTimeout time.Duration          `envconfig:"GENERATION_TIMEOUT" default:"60s" validate:"gt=0"`
	LexiconPath       string                 `envconfig:"LEXICON_PATH"`

	// Indexes
	IndexBackend     string        `envconfig:"INDEX_BACKEND" default:"memory" validate:"oneof=memory pgvector"`
	SnapshotDir      string        `envconfig:"SNAPSHOT_DIR" default:"vectors"`
	SnapshotRefresh  time.Duration `envconfig:"SNAPSHOT_REFRESH" default:"5m"`
	DatabaseURL      string        `envconfig:"DATABASE_URL" validate:"required_if=IndexBackend pgvector"`
	SkipMigrations   bool          `envconfig:"SKIP_MIGRATIONS" default:"false"`
	MigrationsSource string        `envconfig:"MIGRATIONS_SOURCE" default:"file://migrations"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"nutrirag-vectors"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX" default:"vectors/"`

	// Model provider
	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string  `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	Temperature         float32 `envconfig:"TEMPERATURE" default:"0" validate:"gte=0,lte=2"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536" validate:"gt=0"`

	// Embedding cache
	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	EmbeddingCacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`

	CORSOrigins      []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	SentryDSN        string        `envconfig:"SENTRY_DSN"`
	TracesSampleRate float64       `envconfig:"TRACES_SAMPLE_RATE" default:"0.2" validate:"gte=0,lte=1"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from the environment (and a .env file when present)
// and validates it. Validation failures are reported as CONFIG_ERROR.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "failed to process config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s_%s failed %q", envPrefix, envName(fe.StructField()), fe.Tag()))
			}
			return domain.NewDomainErrorWithCause(domain.ErrCodeConfig, strings.Join(msgs, "; "), domain.ErrConfig)
		}
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "validate config", err)
	}
	return nil
}

var fieldEnv = map[string]string{
	"Environment":         "ENVIRONMENT",
	"LogLevel":            "LOG_LEVEL",
	"MinK":                "MIN_K",
	"MaxK":                "MAX_K",
	"OnNoMatch":           "ON_NO_MATCH",
	"HistoryWindow":       "HISTORY_WINDOW",
	"DisclaimerMode":      "DISCLAIMER_MODE",
	"RetrievalTimeout":    "RETRIEVAL_TIMEOUT",
	"GenerationTimeout":   "GENERATION_TIMEOUT",
	"IndexBackend":        "INDEX_BACKEND",
	"DatabaseURL":         "DATABASE_URL",
	"Temperature":         "TEMPERATURE",
	"EmbeddingDimensions": "EMBEDDING_DIMENSIONS",
	"TracesSampleRate":    "TRACES_SAMPLE_RATE",
}

func envName(field string) string {
	if name, ok := fieldEnv[field]; ok {
		return name
	}
	return strings.ToUpper(field)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}
