package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"manual-rag/internal/chunker"
	"manual-rag/internal/errs"
)

const (
	BackendChromem  = "chromem"
	BackendPostgres = "postgres"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// LLMConfig configures one OpenAI-compatible or Ollama endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Key   string `yaml:"key"`
	Debug bool   `yaml:"debug"`
}

type RAGConfig struct {
	ClassName    string `yaml:"class_name"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	VectorSize   int    `yaml:"vector_size"`
}

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	InferLLM LLMConfig      `yaml:"infer_llm"`
	RAG      RAGConfig      `yaml:"rag"`
}

// LoadConfig reads the YAML config, overlays secrets from the process
// environment and fills in defaults. It does not validate; call
// Validate before using the config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv lets deploys keep secrets out of the YAML file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("EMBED_API_KEY"); v != "" {
		cfg.EmbedLLM.Key = v
	}
	if v := os.Getenv("INFER_API_KEY"); v != "" {
		cfg.InferLLM.Key = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DATABASE_KEY"); v != "" {
		cfg.Database.Key = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendChromem
	}
	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "./chromemdb"
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderOpenAI
	}
	if cfg.InferLLM.Provider == "" {
		cfg.InferLLM.Provider = ProviderOpenAI
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.ClassName == "" {
		cfg.RAG.ClassName = "manuals"
	}
}

// Validate checks that everything needed before the first network call
// is present. Reported failures are errs.ErrInvalidConfig.
func (cfg *Config) Validate() error {
	if cfg.EmbedLLM.Model == "" {
		return fmt.Errorf("%w: embed_llm.model is required", errs.ErrInvalidConfig)
	}
	if cfg.EmbedLLM.Provider == ProviderOpenAI && cfg.EmbedLLM.Key == "" {
		return fmt.Errorf("%w: embed_llm.key is required for the openai provider", errs.ErrInvalidConfig)
	}
	if cfg.EmbedLLM.Provider == ProviderOllama && cfg.EmbedLLM.BaseURL == "" {
		return fmt.Errorf("%w: embed_llm.base_url is required for the ollama provider", errs.ErrInvalidConfig)
	}
	if cfg.InferLLM.Model == "" {
		return fmt.Errorf("%w: infer_llm.model is required", errs.ErrInvalidConfig)
	}
	if cfg.InferLLM.Provider == ProviderOpenAI && cfg.InferLLM.Key == "" {
		return fmt.Errorf("%w: infer_llm.key is required for the openai provider", errs.ErrInvalidConfig)
	}
	if cfg.InferLLM.Provider == ProviderOllama && cfg.InferLLM.BaseURL == "" {
		return fmt.Errorf("%w: infer_llm.base_url is required for the ollama provider", errs.ErrInvalidConfig)
	}
	switch cfg.Store.Backend {
	case BackendChromem:
		if !cfg.Chromem.InMemory && cfg.Chromem.Path == "" {
			return fmt.Errorf("%w: chromem.path is required for a persistent store", errs.ErrInvalidConfig)
		}
	case BackendPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for the postgres backend", errs.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", errs.ErrInvalidConfig, cfg.Store.Backend)
	}
	if cfg.RAG.VectorSize <= 0 {
		return fmt.Errorf("%w: rag.vector_size must be positive", errs.ErrInvalidConfig)
	}
	if cfg.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: rag.chunk_size must be positive", errs.ErrInvalidConfig)
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("%w: rag.chunk_overlap must be in [0, chunk_size)", errs.ErrInvalidConfig)
	}
	return nil
}
