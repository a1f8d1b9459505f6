// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like MARVEL_API_PUBLIC_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations so the binary and the
// tests can both find it.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Pinecone.APIKey == "" {
		if val := os.Getenv("PINECONE_API_KEY"); val != "" {
			cfg.Pinecone.APIKey = val
		}
	}
	if cfg.Pinecone.IndexHost == "" {
		if val := os.Getenv("PINECONE_INDEX_HOST"); val != "" {
			cfg.Pinecone.IndexHost = val
		}
	}

	if cfg.OpenAI.APIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.OpenAI.APIKey = val
		}
	}

	if cfg.SuperheroAPI.APIKey == "" {
		if val := os.Getenv("SUPERHERO_API_KEY"); val != "" {
			cfg.SuperheroAPI.APIKey = val
		}
	}

	if cfg.MarvelAPI.PublicKey == "" {
		if val := os.Getenv("MARVEL_API_PUBLIC_KEY"); val != "" {
			cfg.MarvelAPI.PublicKey = val
		}
	}
	if cfg.MarvelAPI.PrivateKey == "" {
		if val := os.Getenv("MARVEL_API_PRIVATE_KEY"); val != "" {
			cfg.MarvelAPI.PrivateKey = val
		}
	}

	if cfg.Database.Redis.URL == "" {
		if val := os.Getenv("REDIS_URL"); val != "" {
			cfg.Database.Redis.URL = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Queue defaults
	if cfg.Queue.KeyPrefix == "" {
		cfg.Queue.KeyPrefix = "queue"
	}
	if cfg.Queue.RatePerSecond == 0 {
		cfg.Queue.RatePerSecond = 10
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.RetryBackoff == 0 {
		cfg.Queue.RetryBackoff = 5000
	}
	if cfg.Queue.PromoteInterval == 0 {
		cfg.Queue.PromoteInterval = 1000
	}
	if cfg.Queue.ShutdownTimeout == 0 {
		cfg.Queue.ShutdownTimeout = 30000
	}
	if cfg.Queue.CompletedHistory == 0 {
		cfg.Queue.CompletedHistory = 1000
	}
	if cfg.Queue.FailedHistory == 0 {
		cfg.Queue.FailedHistory = 5000
	}

	// Verification defaults
	if cfg.Verification.FreshnessHours == 0 {
		cfg.Verification.FreshnessHours = 168
	}

	// Pricing defaults
	if cfg.Pricing.KeyAppearanceRatio == 0 {
		cfg.Pricing.KeyAppearanceRatio = 0.20
	}

	// Embedding defaults
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.Dimensions == 0 {
		cfg.OpenAI.Dimensions = 1024
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = 30000
	}

	// External API defaults
	if cfg.SuperheroAPI.BaseURL == "" {
		cfg.SuperheroAPI.BaseURL = "https://superheroapi.com/api"
	}
	if cfg.SuperheroAPI.Timeout == 0 {
		cfg.SuperheroAPI.Timeout = 10000
	}
	if cfg.MarvelAPI.BaseURL == "" {
		cfg.MarvelAPI.BaseURL = "https://gateway.marvel.com/v1/public"
	}
	if cfg.MarvelAPI.Timeout == 0 {
		cfg.MarvelAPI.Timeout = 10000
	}
	if cfg.Pinecone.Timeout == 0 {
		cfg.Pinecone.Timeout = 30000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Worker defaults
	for key, worker := range cfg.Workers {
		if worker.Concurrency == 0 {
			worker.Concurrency = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" && cfg.Database.Redis.URL == "" {
		return fmt.Errorf("database.redis.address or url is required")
	}

	if cfg.Pricing.KeyAppearanceRatio < 0 || cfg.Pricing.KeyAppearanceRatio > 1 {
		return fmt.Errorf("pricing.key_appearance_ratio must be in [0, 1]")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:     true,
		Concurrency: 5,
		Timeout:     30000,
		MaxRetries:  3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
