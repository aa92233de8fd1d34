package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  Database  `yaml:"database"`
	Vector    Vector    `yaml:"vector"`
	EmbedLLM  LLM       `yaml:"embed_llm"`
	RerankLLM LLM       `yaml:"rerank_llm"`
	Embedding Embedding `yaml:"embedding"`
	Search    Search    `yaml:"search"`
}

type Database struct {
	DSN          string `yaml:"dsn"`
	Password     string `yaml:"password"`
	Debug        bool   `yaml:"debug"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type Vector struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
	Dimension  int    `yaml:"dimension"`
}

type LLM struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

type Embedding struct {
	BatchSize         int     `yaml:"batch_size"`
	MaxRetries        int     `yaml:"max_retries"`
	BackoffBase       float64 `yaml:"backoff_base_seconds"`
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type Search struct {
	VectorWeight        float64 `yaml:"vector_weight"`
	TextWeight          float64 `yaml:"text_weight"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	Candidates          int     `yaml:"candidates"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
	MaxRerankWords      int     `yaml:"max_rerank_words"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
	UseHybrid           bool    `yaml:"use_hybrid"`
	UseReranking        bool    `yaml:"use_reranking"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "chunks"
	}
	if c.Vector.Dimension == 0 {
		c.Vector.Dimension = 768
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.BackoffBase == 0 {
		c.Embedding.BackoffBase = 2
	}
	if c.Embedding.Workers == 0 {
		c.Embedding.Workers = 4
	}
	if c.Embedding.RequestsPerSecond == 0 {
		c.Embedding.RequestsPerSecond = 5
	}
	if c.Embedding.Burst == 0 {
		c.Embedding.Burst = 5
	}
	if c.Search.VectorWeight == 0 {
		c.Search.VectorWeight = 0.7
	}
	if c.Search.TextWeight == 0 {
		c.Search.TextWeight = 0.3
	}
	if c.Search.SimilarityThreshold == 0 {
		c.Search.SimilarityThreshold = 0.05
	}
	if c.Search.Candidates == 0 {
		c.Search.Candidates = 100
	}
	if c.Search.CandidateMultiplier == 0 {
		c.Search.CandidateMultiplier = 5
	}
	if c.Search.MaxRerankWords == 0 {
		c.Search.MaxRerankWords = 256
	}
	if c.Search.TimeoutSeconds == 0 {
		c.Search.TimeoutSeconds = 10
	}
}
