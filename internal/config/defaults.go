package config

import "time"

// Default values.
const (
	DefaultEmbeddingModel = "aubmindlab/bert-base-arabertv2"
	DefaultGeneratorModel = "aubmindlab/aragpt2-base"
	DefaultDataDir        = "/usr/local/var/mizan/data"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if cfg.Data.LegalDataPath == "" {
		cfg.Data.LegalDataPath = DefaultDataDir + "/raw/legal_cases.xlsx"
	}
	if cfg.Data.CleanedLegalPath == "" {
		cfg.Data.CleanedLegalPath = DefaultDataDir + "/processed/cleaned_legal_cases.xlsx"
	}
	if cfg.Data.QADataPath == "" {
		cfg.Data.QADataPath = DefaultDataDir + "/qa_evaluation/qa_pairs.xlsx"
	}
	if cfg.Data.CleanedQAPath == "" {
		cfg.Data.CleanedQAPath = DefaultDataDir + "/processed/cleaned_qa_pairs.xlsx"
	}
	if cfg.Model.EmbeddingModel == "" {
		cfg.Model.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Model.GeneratorModel == "" {
		cfg.Model.GeneratorModel = DefaultGeneratorModel
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 300
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 50
	}
	if cfg.Retrieval.EmbeddingMethod == "" {
		cfg.Retrieval.EmbeddingMethod = "mean"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 100
	}
	if cfg.Retrieval.Threshold == 0 {
		cfg.Retrieval.Threshold = 0.6
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = DefaultDataDir + "/models/arabertv2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 512
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 8
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.QueryPrefix == "" {
		cfg.Embedding.QueryPrefix = "query: "
	}
	if cfg.Generator.Backend == "" {
		cfg.Generator.Backend = "ollama"
	}
	if cfg.Generator.NumBeams == 0 {
		cfg.Generator.NumBeams = 4
	}
	if cfg.Generator.NoRepeatNgramSize == 0 {
		cfg.Generator.NoRepeatNgramSize = 2
	}
	if cfg.Generator.Seed == 0 {
		cfg.Generator.Seed = 42
	}
	if cfg.Storage.IndexType == "" {
		cfg.Storage.IndexType = "file"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = DefaultDataDir + "/processed/legal_index.bin"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = DefaultDataDir + "/db/mizan.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = DefaultDataDir + "/indices/bleve"
	}
	if cfg.Artifacts.Type == "" {
		cfg.Artifacts.Type = "local"
	}
	if cfg.Artifacts.LocalPath == "" {
		cfg.Artifacts.LocalPath = DefaultDataDir + "/artifacts"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
