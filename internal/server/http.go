package server

import (
	"time"

	"resumerank/internal/config"
	"resumerank/internal/errors"
	"resumerank/internal/extract"
	"resumerank/internal/observability"
	"resumerank/internal/ranking"
	"resumerank/internal/similarity"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig config.TLSConfig

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request and upload size limits
	MaxRequestSize int64
	MaxFileSize    int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Ranking components shared by every request
	Ranker        *ranking.Ranker
	Engine        *similarity.Engine
	Extractor     *extract.Extractor
	Observability *observability.ObservabilityManager

	// Scoring profile hot reload, nil unless enabled
	ProfileWatcher *ProfileWatcher

	validate  *validator.Validate
	startedAt time.Time

	// Logger
	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	MaxFileSize    int64
	RateLimit      *config.RateLimitConfig
}

// Dependencies are the long-lived components the handlers call into.
type Dependencies struct {
	Ranker        *ranking.Ranker
	Engine        *similarity.Engine
	Extractor     *extract.Extractor
	Observability *observability.ObservabilityManager
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			cfg.RateLimit.Window,
			logger,
		)
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor = extract.NewExtractor(cfg.MaxFileSize, logger)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		MaxFileSize:    cfg.MaxFileSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Ranker:         deps.Ranker,
		Engine:         deps.Engine,
		Extractor:      extractor,
		Observability:  deps.Observability,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		startedAt:      time.Now(),
		Logger:         logger,
	}
}

// metrics returns the custom instruments, nil when observability is off.
func (s *Server) metrics() *observability.Metrics {
	return s.Observability.GetMetrics()
}
