package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfig.
const EnvPrefix = "RESUMERANK"

// Config holds all application configuration
// Secret Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (RESUMERANK_SIMILARITY_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	Similarity    SimilarityConfig    `mapstructure:"similarity"`
	Ranking       RankingConfig       `mapstructure:"ranking"`
	Server        ServerConfig        `mapstructure:"server"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ScoringConfig holds the parameters of the scoring formula
type ScoringConfig struct {
	Weights                WeightsConfig `mapstructure:"weights"`
	ExperienceCeilingYears float64       `mapstructure:"experienceCeilingYears"`

	// ProfileFile points at a YAML document replacing the built-in skill
	// vocabulary and degree tiers.
	ProfileFile   string        `mapstructure:"profileFile"`
	WatchProfile  bool          `mapstructure:"watchProfile"`
	WatchDebounce time.Duration `mapstructure:"watchDebounce"`
}

// WeightsConfig are the coefficients of the final score
type WeightsConfig struct {
	Similarity float64 `mapstructure:"similarity"`
	SkillFit   float64 `mapstructure:"skillFit"`
	Experience float64 `mapstructure:"experience"`
	Degree     float64 `mapstructure:"degree"`
}

// SimilarityConfig holds the text similarity engine configuration
type SimilarityConfig struct {
	Provider       string               `mapstructure:"provider"` // local, gemini, ollama
	Model          string               `mapstructure:"model"`
	APIKey         string               `mapstructure:"apiKey"`
	BaseURL        string               `mapstructure:"baseURL"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	MaxRetries     int                  `mapstructure:"maxRetries"`
	RetryBaseDelay time.Duration        `mapstructure:"retryBaseDelay"`
	Dimensions     int                  `mapstructure:"dimensions"` // local provider only
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
	Cache          CacheConfig          `mapstructure:"cache"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// CacheConfig configures the embedding cache
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // memory, redis, none
	MaxEntries int           `mapstructure:"maxEntries"`
	TTL        time.Duration `mapstructure:"ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the redis connection used by the redis cache backend
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

// RankingConfig bounds the work done per ranking request
type RankingConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	ResumeTimeout time.Duration `mapstructure:"resumeTimeout"`
	MaxResumes    int           `mapstructure:"maxResumes"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`

	TLS TLSConfig `mapstructure:"tls"`

	// API Authentication
	APIKeys []string `mapstructure:"apiKeys"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Mode     string `mapstructure:"mode"`     // TLS mode: "disabled", "server"
	CertFile string `mapstructure:"certFile"` // Server certificate file (PEM)
	KeyFile  string `mapstructure:"keyFile"`  // Server private key file (PEM)

	// Certificate content (used when loaded from Vault instead of files)
	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`

	MinVersion string `mapstructure:"minVersion"` // "1.2", "1.3"
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RequestsPerMin int           `mapstructure:"requestsPerMin"`
	BurstCapacity  int           `mapstructure:"burstCapacity"`
	ByIP           bool          `mapstructure:"byIP"`
	ByAPIKey       bool          `mapstructure:"byAPIKey"`
	Window         time.Duration `mapstructure:"window"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	ServiceName     string            `mapstructure:"serviceName"`
	ServiceVersion  string            `mapstructure:"serviceVersion"`
	ServiceInstance string            `mapstructure:"serviceInstance"`
	ConsoleOutput   bool              `mapstructure:"consoleOutput"`
	SampleRate      float64           `mapstructure:"sampleRate"`
	Console         ConsoleConfig     `mapstructure:"console"`
	Prometheus      PrometheusConfig  `mapstructure:"prometheus"`
	OTLP            OTLPConfig        `mapstructure:"otlp"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	HealthCheck     HealthCheckConfig `mapstructure:"healthCheck"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// MetricsConfig holds periodic metric export settings
type MetricsConfig struct {
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from defaults, a config file, environment
// variables and any flags already bound to v. A nil v uses a fresh viper
// instance.
func LoadConfig(v *viper.Viper) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	if v == nil {
		v = viper.New()
	}

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", EnvPrefix)

	if explicit := v.GetString("config"); explicit != "" {
		v.SetConfigFile(explicit)
		log.Printf("[CONFIG] Using explicit config file: %s", explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/resumerank/")
		v.AddConfigPath("$HOME/.resumerank")
		v.AddConfigPath(".")
		log.Println("[CONFIG] Configured config file search paths: /etc/resumerank/, $HOME/.resumerank, .")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()

	// Vault values take precedence over everything read above
	if err := ApplyVaultSecrets(&config, nil); err != nil {
		return nil, err
	}

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Similarity.Provider {
	case "local", "ollama":
	case "gemini":
		if c.Similarity.APIKey == "" {
			return fmt.Errorf("similarity API key is required for the gemini provider (set %s_SIMILARITY_APIKEY)", EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported similarity provider: %s (must be 'local', 'gemini' or 'ollama')", c.Similarity.Provider)
	}

	if c.Similarity.Timeout <= 0 {
		return fmt.Errorf("similarity timeout must be positive")
	}
	if c.Similarity.MaxRetries < 0 {
		return fmt.Errorf("similarity maxRetries must not be negative")
	}

	switch c.Similarity.Cache.Backend {
	case "none", "memory":
	case "redis":
		if c.Similarity.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be 'none', 'memory' or 'redis')", c.Similarity.Cache.Backend)
	}

	if c.Scoring.ExperienceCeilingYears <= 0 {
		return fmt.Errorf("scoring experienceCeilingYears must be positive")
	}

	if c.Ranking.Concurrency <= 0 {
		return fmt.Errorf("ranking concurrency must be positive")
	}
	if c.Ranking.ResumeTimeout <= 0 {
		return fmt.Errorf("ranking resumeTimeout must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}

// applyFallbacks fills values that cannot be expressed as static defaults
func (c *Config) applyFallbacks() {
	// Environment values arrive as one comma-separated string.
	c.Server.APIKeys = splitAndTrim(strings.Join(c.Server.APIKeys, ","))

	if c.Similarity.Provider == "gemini" && c.Similarity.APIKey == "" {
		c.Similarity.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}

	if c.Observability.ServiceInstance == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-%s", c.Observability.ServiceName, hostname)
		} else {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-1", c.Observability.ServiceName)
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		EnvPrefix + "_SIMILARITY_APIKEY",
		EnvPrefix + "_SIMILARITY_PROVIDER",
		EnvPrefix + "_SIMILARITY_MODEL",
		EnvPrefix + "_SCORING_PROFILEFILE",
		EnvPrefix + "_SERVER_PORT",
		EnvPrefix + "_SERVER_HOST",
		EnvPrefix + "_APP_LOGLEVEL",
		EnvPrefix + "_VAULT_ENABLED",
		"GEMINI_API_KEY",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if strings.Contains(strings.ToLower(envVar), "key") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Similarity Provider: %s", c.Similarity.Provider)
	log.Printf("[CONFIG] Similarity Model: %s", c.Similarity.Model)
	log.Printf("[CONFIG] Similarity Cache: %s", c.Similarity.Cache.Backend)
	if c.Similarity.APIKey != "" {
		log.Println("[CONFIG] Similarity API Key: ***CONFIGURED***")
	}
	w := c.Scoring.Weights
	log.Printf("[CONFIG] Weights: similarity=%.2f skillFit=%.2f experience=%.2f degree=%.2f",
		w.Similarity, w.SkillFit, w.Experience, w.Degree)
	if c.Scoring.ProfileFile != "" {
		log.Printf("[CONFIG] Scoring Profile: %s (watch=%t)", c.Scoring.ProfileFile, c.Scoring.WatchProfile)
	}
	log.Printf("[CONFIG] Ranking Concurrency: %d", c.Ranking.Concurrency)
	log.Printf("[CONFIG] Server: %s:%s (TLS %s)", c.Server.Host, c.Server.Port, c.Server.TLS.Mode)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}
