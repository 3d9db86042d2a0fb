package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EmbedderConfig configures the OpenAI-compatible embeddings client.
type EmbedderConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	Dimension         int    `yaml:"dimension"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	BatchSize         int    `yaml:"batch_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxRetries        int    `yaml:"max_retries"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	TargetWords  int `yaml:"target_words"`
	OverlapWords int `yaml:"overlap_words"`
	MinChars     int `yaml:"min_chars"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// RetrievalConfig tunes the multi-query retriever.
type RetrievalConfig struct {
	TopK                    int     `yaml:"top_k"`
	SimilarityThreshold     float64 `yaml:"similarity_threshold"`
	FetchMultiplier         int     `yaml:"fetch_multiplier"`
	MaxExpansions           int     `yaml:"max_expansions"`
	EnableReranking         bool    `yaml:"enable_reranking"`
	DisagreementSimilarity  float64 `yaml:"disagreement_similarity"`
	KeywordOverlapThreshold float64 `yaml:"keyword_overlap_threshold"`
}

// RerankConfig configures the secondary relevance model endpoint.
type RerankConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ProviderConfig describes one generation provider in the fallback chain.
// Providers are tried in the order they appear.
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// SynthesisConfig holds the ordered generation provider chain.
type SynthesisConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ResourcesConfig locates the reference library on disk.
type ResourcesConfig struct {
	BooksDir       string `yaml:"books_dir"`
	ArticlesDir    string `yaml:"articles_dir"`
	StateFile      string `yaml:"state_file"`
	CategoriesFile string `yaml:"categories_file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Rerank      RerankConfig      `yaml:"rerank"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Resources   ResourcesConfig   `yaml:"resources"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/advisor/config.yaml.
// If neither exists, it writes defaults to ~/.config/advisor/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "advisor", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		VectorStore: VectorStoreConfig{Type: "memory"},
		Synthesis: SynthesisConfig{Providers: []ProviderConfig{
			{Name: "openai", APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4.1"},
		}},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 96
	}
	if cfg.Embedder.MaxRetries == 0 {
		cfg.Embedder.MaxRetries = 5
	}
	if cfg.Chunker.TargetWords == 0 {
		cfg.Chunker.TargetWords = 500
	}
	if cfg.Chunker.OverlapWords == 0 {
		cfg.Chunker.OverlapWords = 50
	}
	if cfg.Chunker.MinChars == 0 {
		cfg.Chunker.MinChars = 50
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.28
	}
	if cfg.Retrieval.FetchMultiplier == 0 {
		cfg.Retrieval.FetchMultiplier = 3
	}
	if cfg.Retrieval.MaxExpansions == 0 {
		cfg.Retrieval.MaxExpansions = 8
	}
	if cfg.Retrieval.DisagreementSimilarity == 0 {
		cfg.Retrieval.DisagreementSimilarity = 0.6
	}
	if cfg.Retrieval.KeywordOverlapThreshold == 0 {
		cfg.Retrieval.KeywordOverlapThreshold = 0.4
	}
	if cfg.Rerank.TimeoutSecs == 0 {
		cfg.Rerank.TimeoutSecs = 20
	}
	if cfg.Rerank.MaxRetries == 0 {
		cfg.Rerank.MaxRetries = 3
	}
	if cfg.Rerank.Model == "" {
		cfg.Rerank.Model = "rerank-english-v3.0"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "advisor_resources"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	for i := range cfg.Synthesis.Providers {
		p := &cfg.Synthesis.Providers[i]
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = 60
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 2048
		}
	}
	if cfg.Resources.BooksDir == "" {
		cfg.Resources.BooksDir = "resources/books"
	}
	if cfg.Resources.ArticlesDir == "" {
		cfg.Resources.ArticlesDir = "resources/articles"
	}
	if cfg.Resources.StateFile == "" {
		cfg.Resources.StateFile = ".processed_files.json"
	}
	if cfg.Resources.CategoriesFile == "" {
		cfg.Resources.CategoriesFile = "config/categories.json"
	}
}
