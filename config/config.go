// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads the application configuration.
//
// Values resolve in three layers: built-in defaults, then an optional
// YAML file, then environment variables. Command-line flags may override
// individual values on top at the command layer.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/thread"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration.
type Config struct {
	// DBPath is the BadgerDB directory. Empty selects an in-memory store.
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	AI     AIConfig     `yaml:"ai"`
	Ingest IngestConfig `yaml:"ingest"`
	Search SearchConfig `yaml:"search"`
	API    APIConfig    `yaml:"api"`
	Events EventsConfig `yaml:"events"`
}

// AIConfig selects and addresses the embedding and generation backends.
type AIConfig struct {
	Provider        string  `yaml:"provider"` // openai or ollama
	EmbeddingHost   string  `yaml:"embedding_host"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	GenerationHost  string  `yaml:"generation_host"`
	GenerationModel string  `yaml:"generation_model"`
	Temperature     float64 `yaml:"temperature"`
}

// IngestConfig tunes thread detection and the embedding orchestrator.
type IngestConfig struct {
	// ExportPath is the Telegram export file ingestion runs read when no
	// explicit file is given (CLI default, API /ingest).
	ExportPath        string `yaml:"export_path"`
	TimeWindowMinutes int    `yaml:"time_window_minutes"`
	MinMessages       int    `yaml:"min_messages"`
	MaxMessages       int    `yaml:"max_messages"`
	BatchSize         int    `yaml:"batch_size"`
	Concurrency       int    `yaml:"concurrency"`
	MaxRetries        int    `yaml:"max_retries"`
}

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	Alpha          float32 `yaml:"alpha"`
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float32 `yaml:"score_threshold"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// EventsConfig configures the optional NATS publisher.
// An empty NatsURL disables event publication.
type EventsConfig struct {
	NatsURL string `yaml:"nats_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		DBPath:   "recollect.db",
		LogLevel: "info",
		AI: AIConfig{
			Provider:        aiDefaults.Provider,
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			GenerationHost:  aiDefaults.GenerationHost,
			GenerationModel: aiDefaults.GenerationModel,
			Temperature:     aiDefaults.Temperature,
		},
		Ingest: IngestConfig{
			ExportPath:        "result.json",
			TimeWindowMinutes: 5,
			MinMessages:       1,
			MaxMessages:       50,
			BatchSize:         100,
			Concurrency:       4,
			MaxRetries:        3,
		},
		Search: SearchConfig{
			Alpha:          0.75,
			TopK:           5,
			ScoreThreshold: 0.5,
		},
		API: APIConfig{
			Addr: ":8000",
		},
		Events: EventsConfig{},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DBPath = envStr("RECOLLECT_DB_PATH", c.DBPath)
	c.LogLevel = envStr("RECOLLECT_LOG_LEVEL", c.LogLevel)
	c.AI.Provider = envStr("RECOLLECT_PROVIDER", c.AI.Provider)
	c.AI.EmbeddingHost = envStr("RECOLLECT_EMBEDDING_HOST", c.AI.EmbeddingHost)
	c.AI.EmbeddingModel = envStr("RECOLLECT_EMBEDDING_MODEL", c.AI.EmbeddingModel)
	c.AI.GenerationHost = envStr("RECOLLECT_GENERATION_HOST", c.AI.GenerationHost)
	c.AI.GenerationModel = envStr("RECOLLECT_GENERATION_MODEL", c.AI.GenerationModel)
	c.Ingest.ExportPath = envStr("RECOLLECT_EXPORT_PATH", c.Ingest.ExportPath)
	c.API.Addr = envStr("RECOLLECT_API_ADDR", c.API.Addr)
	c.API.Token = envStr("RECOLLECT_API_TOKEN", c.API.Token)
	c.Events.NatsURL = envStr("RECOLLECT_NATS_URL", c.Events.NatsURL)
}

// Validate checks value ranges. It does not probe external services.
func (c *Config) Validate() error {
	if c.AI.Provider != ai.ProviderOpenAI && c.AI.Provider != ai.ProviderOllama {
		return fmt.Errorf("%w: ai.provider must be %q or %q", ErrInvalidConfig, ai.ProviderOpenAI, ai.ProviderOllama)
	}
	if c.Ingest.TimeWindowMinutes < 1 || c.Ingest.TimeWindowMinutes > 60 {
		return fmt.Errorf("%w: ingest.time_window_minutes must be between 1 and 60", ErrInvalidConfig)
	}
	if c.Ingest.MinMessages < 1 {
		return fmt.Errorf("%w: ingest.min_messages must be at least 1", ErrInvalidConfig)
	}
	if c.Ingest.MaxMessages < c.Ingest.MinMessages {
		return fmt.Errorf("%w: ingest.max_messages must be >= ingest.min_messages", ErrInvalidConfig)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("%w: ingest.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("%w: ingest.concurrency must be positive", ErrInvalidConfig)
	}
	if c.Ingest.MaxRetries < 1 {
		return fmt.Errorf("%w: ingest.max_retries must be positive", ErrInvalidConfig)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("%w: search.alpha must be between 0 and 1", ErrInvalidConfig)
	}
	if c.Search.TopK < 1 || c.Search.TopK > 20 {
		return fmt.Errorf("%w: search.top_k must be between 1 and 20", ErrInvalidConfig)
	}
	if c.Search.ScoreThreshold < 0 || c.Search.ScoreThreshold > 1 {
		return fmt.Errorf("%w: search.score_threshold must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}

// NewAIConfig builds the configuration the provider packages consume.
func (c *Config) NewAIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.AI.Provider),
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithTemperature(c.AI.Temperature),
	)
}

// DetectorConfig builds the thread detection parameters.
func (c *Config) DetectorConfig() *thread.Config {
	return &thread.Config{
		TimeWindow:  time.Duration(c.Ingest.TimeWindowMinutes) * time.Minute,
		MinMessages: c.Ingest.MinMessages,
		MaxMessages: c.Ingest.MaxMessages,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
