package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	DSN           string           `json:"dsn"`
	MigrationsDir string           `json:"migrations_dir"`
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	AIRateSeconds int              `json:"ai_rate_seconds"`
	LogConfig     logger.LogConfig `json:"log_config"`
	FileStore     FileStoreConfig  `json:"file_store"`
	AI            AIConfig         `json:"ai"`
	Retrieval     RetrievalConfig  `json:"retrieval"`
	Jobs          JobsConfig       `json:"jobs"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Model          string      `json:"model"`
	EmbedModel     string      `json:"embed_model"`
	TranslateTo    string      `json:"translate_to"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	MaxInputChars  int         `json:"max_input_chars"`
	Data           interface{} `json:"data"`
}

type RetrievalConfig struct {
	ChatTopK    int `json:"chat_top_k"`
	QuizTopK    int `json:"quiz_top_k"`
	SuggestTopK int `json:"suggest_top_k"`
}

type JobsConfig struct {
	IndexJanitorSpec      string `json:"index_janitor_spec"`
	CacheCleanupSpec      string `json:"cache_cleanup_spec"`
	EmbeddingCacheTTLDays int    `json:"embedding_cache_ttl_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.AIRateSeconds == 0 {
		cfg.AIRateSeconds = 2
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.TranslateTo == "" {
		cfg.AI.TranslateTo = "Korean"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 100000
	}
	if cfg.Retrieval.ChatTopK == 0 {
		cfg.Retrieval.ChatTopK = 8
	}
	if cfg.Retrieval.QuizTopK == 0 {
		cfg.Retrieval.QuizTopK = 15
	}
	if cfg.Retrieval.SuggestTopK == 0 {
		cfg.Retrieval.SuggestTopK = 5
	}
	if cfg.Jobs.IndexJanitorSpec == "" {
		cfg.Jobs.IndexJanitorSpec = "*/10 * * * *"
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "0 4 * * *"
	}
	if cfg.Jobs.EmbeddingCacheTTLDays == 0 {
		cfg.Jobs.EmbeddingCacheTTLDays = 30
	}
	return &cfg, nil
}
