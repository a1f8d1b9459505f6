// internal/common/config/config.go
package config

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Pinecone     PineconeConfig          `mapstructure:"pinecone"`
	OpenAI       OpenAIConfig            `mapstructure:"openai"`
	SuperheroAPI SuperheroAPIConfig      `mapstructure:"superhero_api"`
	MarvelAPI    MarvelAPIConfig         `mapstructure:"marvel_api"`
	Queue        QueueConfig             `mapstructure:"queue"`
	Verification VerificationConfig      `mapstructure:"verification"`
	Pricing      PricingConfig           `mapstructure:"pricing"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// NeedsTLS reports whether the connection should use TLS. Managed Redis
// providers only accept TLS, so rediss:// URLs and known managed
// hostnames force it on regardless of the use_tls flag.
func (r RedisConfig) NeedsTLS() bool {
	if r.UseTLS {
		return true
	}
	if strings.HasPrefix(r.URL, "rediss://") {
		return true
	}
	host := r.Address
	if host == "" {
		host = r.URL
	}
	for _, managed := range []string{"upstash.io", "redns.redis-cloud.com", "cache.amazonaws.com"} {
		if strings.Contains(host, managed) {
			return true
		}
	}
	return false
}

// TLSConfig returns the TLS config to use, or nil for plaintext.
func (r RedisConfig) TLSConfig() *tls.Config {
	if !r.NeedsTLS() {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// --- External Service Config ---

type PineconeConfig struct {
	APIKey    string `mapstructure:"api_key"`
	IndexHost string `mapstructure:"index_host"`
	Namespace string `mapstructure:"namespace"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Dimensions     int    `mapstructure:"dimensions"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
}

type SuperheroAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type MarvelAPIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	PublicKey  string `mapstructure:"public_key"`
	PrivateKey string `mapstructure:"private_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// --- Pipeline Config ---

type QueueConfig struct {
	KeyPrefix        string `mapstructure:"key_prefix"`
	RatePerSecond    int    `mapstructure:"rate_per_second"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryBackoff     int    `mapstructure:"retry_backoff"`     // milliseconds, doubles per attempt
	PromoteInterval  int    `mapstructure:"promote_interval"`  // milliseconds
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout"`  // milliseconds
	CompletedHistory int    `mapstructure:"completed_history"` // jobs retained per queue
	FailedHistory    int    `mapstructure:"failed_history"`
}

type VerificationConfig struct {
	FreshnessHours int `mapstructure:"freshness_hours"`
}

type PricingConfig struct {
	KeyAppearanceRatio float64 `mapstructure:"key_appearance_ratio"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
	Timeout     int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries  int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
