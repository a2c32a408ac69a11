// Package config provides configuration loading for the docmerge server.
//
// Configuration comes from an optional YAML file with environment
// variable overrides on top, so deployments can run file-less with just
// MERGE_GUIDELINES_DOCUMENT_URL and ANTHROPIC_API_KEY set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/avela/go-docmerge/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
)

// Environment variables recognized by ApplyEnv.
const (
	EnvGuidelinesURL = "MERGE_GUIDELINES_DOCUMENT_URL"
	EnvAPIKey        = "ANTHROPIC_API_KEY"
	EnvHost          = "DOCMERGE_HOST"
	EnvPort          = "DOCMERGE_PORT"
	EnvDataDir       = "DOCMERGE_DATA_DIR"
	EnvPublicBaseURL = "DOCMERGE_PUBLIC_BASE_URL"
	EnvModel         = "DOCMERGE_MODEL"
)

// Config holds all configuration for the server.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Merge   MergeConfig   `yaml:"merge"`
	LLM     LLMConfig     `yaml:"llm"`
	Render  RenderConfig  `yaml:"render"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// PublicBaseURL is the externally visible origin used to build blob
	// URLs. Defaults to http://<host>:<port>.
	PublicBaseURL string `yaml:"public_base_url"`
}

// StorageConfig holds paths for the artifact database and blob storage.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	BlobDir      string `yaml:"blob_dir"`
}

// MergeConfig holds merge pipeline settings.
type MergeConfig struct {
	// GuidelinesURL points at the fixed formatting-guidelines PDF.
	// Usually supplied via MERGE_GUIDELINES_DOCUMENT_URL.
	GuidelinesURL string `yaml:"guidelines_url"`

	// MaxUploadBytes caps the size of one uploaded source file.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// AllowedContentTypes lists accepted upload content types.
	AllowedContentTypes []string `yaml:"allowed_content_types"`
}

// LLMConfig holds model provider settings. The API key is environment
// only and never read from the YAML file.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	APIKey string `yaml:"-"`
}

// RenderConfig holds PDF rendering settings.
type RenderConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Workers bounds the renderer pool; 0 auto-sizes from GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Default returns a configuration with working defaults for local use.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			DatabasePath: "data/documents.db",
			BlobDir:      "data/blobs",
		},
		Merge: MergeConfig{
			MaxUploadBytes:      20 << 20, // 20MB
			AllowedContentTypes: []string{"application/pdf"},
		},
		LLM: LLMConfig{
			MaxTokens:      8192,
			TimeoutSeconds: 300,
		},
		Render: RenderConfig{
			TimeoutSeconds: 60,
		},
	}
}

// Load reads and strictly parses the config file at path, then fills
// unset fields with defaults. Returns an error if the file is missing
// (no silent fallback).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path is operator-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Called after
// Load (or on Default) so the environment always wins.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvGuidelinesURL); v != "" {
		c.Merge.GuidelinesURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Storage.DatabasePath = v + "/documents.db"
		c.Storage.BlobDir = v + "/blobs"
	}
	if v := os.Getenv(EnvPublicBaseURL); v != "" {
		c.Server.PublicBaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
}

// Validate checks field ranges. The guidelines URL is deliberately not
// validated here: its absence is reported per merge request by the
// resolver, matching the per-call configuration check.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Merge.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.Merge.MaxUploadBytes)
	}
	if len(c.Merge.AllowedContentTypes) == 0 {
		return errors.New("allowed_content_types cannot be empty")
	}
	if c.Render.TimeoutSeconds <= 0 {
		return fmt.Errorf("render timeout_seconds must be positive, got %d", c.Render.TimeoutSeconds)
	}
	return nil
}

// PublicBaseURL returns the configured public origin, defaulting to the
// listen address.
func (c *Config) PublicBaseURL() string {
	if c.Server.PublicBaseURL != "" {
		return c.Server.PublicBaseURL
	}
	host := c.Server.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// RenderTimeout returns the render timeout as a duration.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// LLMTimeout returns the model request timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
