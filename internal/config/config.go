// Package config provides configuration loading and structs for the Mizan pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Device    string          `yaml:"device"`
	Data      DataConfig      `yaml:"data"`
	Model     ModelConfig     `yaml:"model"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Training  TrainingConfig  `yaml:"training"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Storage   StorageConfig   `yaml:"storage"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Providers ProvidersConfig `yaml:"providers"`
	RulesPath string          `yaml:"rules_path"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
}

// DataConfig holds the spreadsheet locations.
type DataConfig struct {
	LegalDataPath    string `yaml:"legal_data_path"`
	CleanedLegalPath string `yaml:"cleaned_legal_path"`
	QADataPath       string `yaml:"qa_data_path"`
	CleanedQAPath    string `yaml:"cleaned_qa_path"`
}

// ModelConfig names the embedding and generation models.
type ModelConfig struct {
	EmbeddingModel     string `yaml:"embedding_model"`
	GeneratorModel     string `yaml:"generator_model"`
	GeneratorModelPath string `yaml:"generator_model_path"`
}

// ChunkingConfig holds passage splitting settings.
type ChunkingConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Separators   []string `yaml:"separators"`
}

// RetrievalConfig holds retrieval settings. EmbeddingMethod is the pooling
// strategy (mean or cls).
type RetrievalConfig struct {
	EmbeddingMethod string  `yaml:"embedding_method"`
	TopK            int     `yaml:"top_k"`
	MaxTopK         int     `yaml:"max_top_k"`
	Threshold       float64 `yaml:"threshold"`
}

// TrainingConfig is accepted for compatibility with existing config files. Fine-tuning
// happens outside this program.
type TrainingConfig struct {
	MaxLength int `yaml:"max_length"`
	BatchSize int `yaml:"batch_size"`
	Epochs    int `yaml:"epochs"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Backend     string `yaml:"backend"`
	ModelPath   string `yaml:"model_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	BatchSize   int    `yaml:"batch_size"`
	CacheSize   int    `yaml:"cache_size"`
	QueryPrefix string `yaml:"query_prefix"`
}

// GeneratorConfig selects and tunes the generation backend.
type GeneratorConfig struct {
	Backend           string `yaml:"backend"`
	NumBeams          int    `yaml:"num_beams"`
	NoRepeatNgramSize int    `yaml:"no_repeat_ngram_size"`
	PadToken          string `yaml:"pad_token"`
	EOSToken          string `yaml:"eos_token"`
	Seed              int    `yaml:"seed"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	IndexType        string `yaml:"index_type"`
	IndexPath        string `yaml:"index_path"`
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// ArtifactsConfig holds where built indexes are published.
type ArtifactsConfig struct {
	Type      string `yaml:"type"`
	LocalPath string `yaml:"local_path"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// ProvidersConfig holds remote model service settings.
type ProvidersConfig struct {
	Ollama OllamaConfig `yaml:"ollama"`
	Gemini GeminiConfig `yaml:"gemini"`
	Vertex VertexConfig `yaml:"vertex"`
}

// OllamaConfig holds the Ollama endpoint.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// VertexConfig holds Vertex AI settings.
type VertexConfig struct {
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WatchConfig holds dataset watch settings.
type WatchConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// EnabledOrDefault returns whether to watch the dataset; defaults to false when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return false
}

// Environment variables consulted when the file leaves a setting empty.
const (
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
	EnvOllamaURL      = "OLLAMA_HOST"
	EnvVertexProject  = "VERTEX_PROJECT"
	EnvVertexRegion   = "VERTEX_LOCATION"
	EnvArtifactRegion = "AWS_REGION"
)

// Load reads and parses the config file at path, applies environment overrides and
// defaults, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	for _, p := range []*string{
		&cfg.Data.LegalDataPath,
		&cfg.Data.CleanedLegalPath,
		&cfg.Data.QADataPath,
		&cfg.Data.CleanedQAPath,
		&cfg.Model.GeneratorModelPath,
		&cfg.Embedding.ModelPath,
		&cfg.Storage.IndexPath,
		&cfg.Storage.DatabasePath,
		&cfg.Storage.KeywordIndexPath,
		&cfg.Artifacts.LocalPath,
		&cfg.RulesPath,
	} {
		*p = expandPath(*p, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv fills secrets and endpoints from the environment when the file leaves
// them empty.
func ApplyEnv(cfg *Config) {
	setFromEnv(&cfg.Providers.Gemini.APIKey, EnvGeminiAPIKey)
	setFromEnv(&cfg.Providers.Ollama.BaseURL, EnvOllamaURL)
	setFromEnv(&cfg.Providers.Vertex.Project, EnvVertexProject)
	setFromEnv(&cfg.Providers.Vertex.Location, EnvVertexRegion)
	setFromEnv(&cfg.Artifacts.Region, EnvArtifactRegion)
}

func setFromEnv(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	if c.Retrieval.Threshold < -1 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be within [-1, 1], got %v", c.Retrieval.Threshold)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Retrieval.TopK > c.Retrieval.MaxTopK {
		return fmt.Errorf("retrieval.top_k (%d) exceeds max_top_k (%d)", c.Retrieval.TopK, c.Retrieval.MaxTopK)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
