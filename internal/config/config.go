package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SQLSHERPA"

// IndexDimensions is the width of the chunks.embedding column.
const IndexDimensions = 1536

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	Model               string `envconfig:"MODEL" default:"gpt-4.1"`
	ModerationModel     string `envconfig:"MODERATION_MODEL" default:"omni-moderation-latest"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	IndexName string `envconfig:"INDEX_NAME" default:"my-ai"`
	Namespace string `envconfig:"NAMESPACE" default:"sql"`
	TopK      int    `envconfig:"TOP_K" default:"40"`

	MaxSteps                int           `envconfig:"MAX_STEPS" default:"10"`
	RequestTimeout          time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ModerationFailurePolicy string        `envconfig:"MODERATION_FAILURE_POLICY" default:"closed"`
	Timezone                string        `envconfig:"TIMEZONE"`

	WebSearchAPIKey  string `envconfig:"WEB_SEARCH_API_KEY"`
	WebSearchURL     string `envconfig:"WEB_SEARCH_URL" default:"https://api.exa.ai"`
	WebSearchResults int    `envconfig:"WEB_SEARCH_RESULTS" default:"5"`

	EmbedInterval time.Duration `envconfig:"EMBED_INTERVAL" default:"10s"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"2"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
	TrustProxy     bool    `envconfig:"TRUST_PROXY" default:"false"`

	BrandingFile string `envconfig:"BRANDING_FILE"`
	SentryDSN    string `envconfig:"SENTRY_DSN"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"sqlsherpa-corpus"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	switch strings.ToLower(c.ModerationFailurePolicy) {
	case "open", "closed":
	default:
		return fmt.Errorf("invalid %s_MODERATION_FAILURE_POLICY %q: must be open or closed", envPrefix, c.ModerationFailurePolicy)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("invalid %s_TOP_K %d: must be positive", envPrefix, c.TopK)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("invalid %s_MAX_STEPS %d: must be positive", envPrefix, c.MaxSteps)
	}
	if c.EmbeddingDimensions != IndexDimensions {
		return fmt.Errorf("invalid %s_EMBEDDING_DIMENSIONS %d: the vector index stores %d dimensions", envPrefix, c.EmbeddingDimensions, IndexDimensions)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid %s_REQUEST_TIMEOUT %s: must be positive", envPrefix, c.RequestTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasWebSearch() bool {
	return c.WebSearchAPIKey != ""
}

// Location returns the zone used for the prompt's date line; nil means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid %s_TIMEZONE %q: %w", envPrefix, c.Timezone, err)
	}
	return loc, nil
}

// LoadBranding returns the built-in branding with the YAML file at
// BrandingFile applied over it, if one is configured.
func (c *Config) LoadBranding() (domain.Branding, error) {
	branding := domain.DefaultBranding()
	if c.BrandingFile == "" {
		return branding, nil
	}

	data, err := os.ReadFile(c.BrandingFile)
	if err != nil {
		return domain.Branding{}, fmt.Errorf("failed to read branding file: %w", err)
	}

	var override domain.Branding
	if err := yaml.Unmarshal(data, &override); err != nil {
		return domain.Branding{}, fmt.Errorf("failed to parse branding file: %w", err)
	}
	return branding.Merge(override), nil
}
