package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// APIVersion prefixes the chat routes (/api/v0/...).
const APIVersion = "v0"

// ErrorMessage is the user-visible text substituted when answer generation
// fails.
const ErrorMessage = "We are facing an issue, please try again later."

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Memory MemoryConfig `mapstructure:"memory"`
	Store  StoreConfig  `mapstructure:"store"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type MemoryConfig struct {
	// TokenThreshold triggers summarization when the unsummarized tail
	// exceeds it (strictly greater than).
	TokenThreshold int `mapstructure:"token_threshold"`

	// RecentMessagesCount is how many messages survive a summarization and
	// how many feed query understanding.
	RecentMessagesCount int `mapstructure:"recent_messages_count"`

	// TiktokenEncoding names the BPE encoding used for token counting.
	TiktokenEncoding string `mapstructure:"tiktoken_encoding"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // "file" or "postgres"
	Dir         string `mapstructure:"dir"`
	DatabaseURL string `mapstructure:"database_url"`
}

type LLMConfig struct {
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	Burst              int           `mapstructure:"burst"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.cors_origins", "*")
	viper.SetDefault("openai.model", "gpt-4.1-mini")
	viper.SetDefault("memory.token_threshold", 1000)
	viper.SetDefault("memory.recent_messages_count", 5)
	viper.SetDefault("memory.tiktoken_encoding", "o200k_base")
	viper.SetDefault("store.driver", "file")
	viper.SetDefault("store.dir", "./data/memory")
	viper.SetDefault("llm.requests_per_second", 5)
	viper.SetDefault("llm.burst", 10)
	viper.SetDefault("llm.breaker_max_failures", 3)
	viper.SetDefault("llm.breaker_timeout", 30*time.Second)
	viper.SetDefault("llm.request_timeout", 60*time.Second)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		// Defaults plus environment overrides are a complete configuration;
		// a config file is optional.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("MEMCHAT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if origins := os.Getenv("MEMCHAT_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = origins
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAI.Model = model
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}

	if threshold := os.Getenv("TOKEN_THRESHOLD"); threshold != "" {
		if v, err := strconv.Atoi(threshold); err == nil {
			cfg.Memory.TokenThreshold = v
		}
	}
	if count := os.Getenv("RECENT_MESSAGES_COUNT"); count != "" {
		if v, err := strconv.Atoi(count); err == nil {
			cfg.Memory.RecentMessagesCount = v
		}
	}
	if encoding := os.Getenv("TIKTOKEN_MODEL"); encoding != "" {
		cfg.Memory.TiktokenEncoding = encoding
	}

	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if dir := os.Getenv("MEMORY_DIR"); dir != "" {
		cfg.Store.Dir = dir
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Store.DatabaseURL = dbURL
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}
