// Package config loads the docsum command configuration from a YAML or TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/MegaGrindStone/go-docsum/handler"
	"github.com/MegaGrindStone/go-docsum/llm"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full configuration of the docsum command.
type Config struct {
	LogLevel string `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`

	Chunking docsum.ChunkingPolicy `yaml:"chunking" toml:"chunking" envPrefix:"CHUNKING_"`
	// ChunkUnit is "token" or "rune".
	ChunkUnit string `yaml:"chunk_unit" toml:"chunk_unit" env:"CHUNK_UNIT"`
	// Chunker is "default", "markdown", "semantic" or "go".
	Chunker string `yaml:"chunker" toml:"chunker" env:"CHUNKER"`

	Strategy        string        `yaml:"strategy" toml:"strategy" env:"STRATEGY"`
	ResponseMode    string        `yaml:"response_mode" toml:"response_mode" env:"RESPONSE_MODE"`
	ChoiceBatchSize int           `yaml:"choice_batch_size" toml:"choice_batch_size" env:"CHOICE_BATCH_SIZE"`
	SimilarityTopK  int           `yaml:"similarity_top_k" toml:"similarity_top_k" env:"SIMILARITY_TOP_K"`
	Concurrency     int           `yaml:"concurrency" toml:"concurrency" env:"CONCURRENCY"`
	ContextWindow   int           `yaml:"context_window" toml:"context_window" env:"CONTEXT_WINDOW"`
	NumOutput       int           `yaml:"num_output" toml:"num_output" env:"NUM_OUTPUT"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`

	LLM       LLM       `yaml:"llm" toml:"llm" envPrefix:"LLM_"`
	Embedding Embedding `yaml:"embedding" toml:"embedding" envPrefix:"EMBEDDING_"`
	Journal   Journal   `yaml:"journal" toml:"journal" envPrefix:"JOURNAL_"`

	// BatchConcurrency bounds the documents summarized at once in batch mode.
	BatchConcurrency int `yaml:"batch_concurrency" toml:"batch_concurrency" env:"BATCH_CONCURRENCY"`
	StripMarkdown    bool `yaml:"strip_markdown" toml:"strip_markdown" env:"STRIP_MARKDOWN"`
}

// LLM selects and configures the completion backend.
type LLM struct {
	// Provider is one of openai, openai-compat, openai-responses, ollama, anthropic, openrouter.
	Provider   string         `yaml:"provider" toml:"provider" env:"PROVIDER"`
	Model      string         `yaml:"model" toml:"model" env:"MODEL"`
	APIKey     string         `yaml:"api_key" toml:"api_key" env:"API_KEY"`
	Host       string         `yaml:"host" toml:"host" env:"HOST"`
	MaxTokens  int            `yaml:"max_tokens" toml:"max_tokens" env:"MAX_TOKENS"`
	Parameters llm.Parameters `yaml:"parameters" toml:"parameters"`
}

// Embedding selects the embedding backend used by the embedding strategy.
type Embedding struct {
	// Provider is openai, ollama, or empty to disable embeddings.
	Provider string `yaml:"provider" toml:"provider" env:"PROVIDER"`
	Model    string `yaml:"model" toml:"model" env:"MODEL"`
	APIKey   string `yaml:"api_key" toml:"api_key" env:"API_KEY"`
	Host     string `yaml:"host" toml:"host" env:"HOST"`
}

// Journal selects where batch results are recorded.
type Journal struct {
	// Backend is bolt, redis, or empty to disable the journal.
	Backend       string `yaml:"backend" toml:"backend" env:"BACKEND"`
	Path          string `yaml:"path" toml:"path" env:"PATH"`
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db" env:"REDIS_DB"`
}

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DOCSUM_"

var (
	// ErrUnknownFormat is returned for a config file that is neither YAML nor TOML.
	ErrUnknownFormat = errors.New("unknown config format")
	// ErrInvalid is wrapped by every validation error.
	ErrInvalid = errors.New("invalid config")
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:         "info",
		Chunking:         docsum.ChunkingPolicy{ChunkSize: docsum.DefaultChunkSize},
		ChunkUnit:        string(handler.UnitToken),
		Chunker:          "default",
		Strategy:         string(docsum.StrategyLLM),
		ResponseMode:     string(docsum.ModeCompact),
		Concurrency:      2,
		BatchConcurrency: 2,
		LLM: LLM{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Journal: Journal{
			Path: "docsum.db",
		},
	}
}

// Load reads the configuration. It starts from Default, applies the file at path when path is
// not empty, loads a .env file from the working directory if present, and finally applies
// DOCSUM_ prefixed environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Chunking.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := handler.ParseUnit(c.ChunkUnit); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Chunker {
	case "", "default", "markdown", "semantic", "go":
	default:
		return fmt.Errorf("%w: unknown chunker %q", ErrInvalid, c.Chunker)
	}
	strategy, err := docsum.ParseRetrievalStrategy(c.Strategy)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if strategy == docsum.StrategyEmbedding && c.Embedding.Provider == "" {
		return fmt.Errorf("%w: embedding strategy needs an embedding provider", ErrInvalid)
	}
	if _, err := docsum.ParseResponseMode(c.ResponseMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalid, c.Timeout)
	}
	switch c.Journal.Backend {
	case "", "bolt", "redis":
	default:
		return fmt.Errorf("%w: unknown journal backend %q", ErrInvalid, c.Journal.Backend)
	}
	return nil
}

// SlogLevel converts LogLevel into a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
