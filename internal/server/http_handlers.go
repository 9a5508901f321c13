package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"resumerank/internal/common"
	resumerankErrors "resumerank/internal/errors"
	"resumerank/internal/formatters"
	"resumerank/internal/ranking"
)

const (
	defaultHealthCheckTimeout = 5 * time.Second

	// healthProbeText is compared with itself to exercise the provider.
	healthProbeText = "resumerank health probe"
)

var contentTypes = map[string]string{
	"json":     "application/json",
	"text":     "text/plain; charset=utf-8",
	"markdown": "text/markdown; charset=utf-8",
	"csv":      "text/csv; charset=utf-8",
}

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig != nil && s.AppConfig.Observability.HealthCheck.Timeout > 0 {
		return s.AppConfig.Observability.HealthCheck.Timeout
	}
	return defaultHealthCheckTimeout
}

// healthHandler reports whether the similarity provider answers and which
// scoring profile is active.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
	defer cancel()

	similarityStatus := s.checkSimilarityHealth(ctx)
	response := map[string]any{
		"status":     "healthy",
		"service":    "resumerank",
		"version":    s.Version,
		"similarity": similarityStatus,
		"profile":    s.profileStatus(),
	}

	status := http.StatusOK
	if available, _ := similarityStatus["available"].(bool); !available {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// checkSimilarityHealth compares a probe text with itself. An open circuit
// breaker short-circuits the probe.
func (s *Server) checkSimilarityHealth(ctx context.Context) map[string]any {
	if s.Engine == nil {
		return map[string]any{"available": false, "error": "similarity engine not configured"}
	}

	status := map[string]any{
		"provider":        s.Engine.Provider().Name(),
		"model":           s.Engine.Provider().Model(),
		"circuit_healthy": s.Engine.IsHealthy(),
	}

	if !s.Engine.IsHealthy() {
		status["available"] = false
		status["error"] = "circuit breaker is open"
		return status
	}

	start := time.Now()
	if _, err := s.Engine.Similarity(ctx, healthProbeText, healthProbeText); err != nil {
		status["available"] = false
		status["error"] = err.Error()
		return status
	}
	status["available"] = true
	status["latency_ms"] = time.Since(start).Milliseconds()
	return status
}

// profileStatus describes the scoring profile currently used for new rankings.
func (s *Server) profileStatus() map[string]any {
	status := map[string]any{}
	if s.Ranker != nil {
		profile := s.Ranker.Scorer().Profile()
		status["version"] = profile.Vocabulary.Version()
		status["skills"] = profile.Vocabulary.Len()
	}
	if s.AppConfig != nil && s.AppConfig.Scoring.ProfileFile != "" {
		status["file"] = s.AppConfig.Scoring.ProfileFile
	}
	if s.ProfileWatcher != nil {
		status["hot_reload"] = s.ProfileWatcher.Stats()
	} else {
		status["hot_reload"] = map[string]any{"enabled": false}
	}
	return status
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	response := map[string]any{
		"service":        "resumerank",
		"version":        s.Version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"max_file_size_bytes":    s.MaxFileSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
	}

	if s.Engine != nil {
		response["similarity"] = s.Engine.Stats()
	}

	if s.AppConfig != nil {
		response["ranking"] = map[string]any{
			"concurrency":    s.AppConfig.Ranking.Concurrency,
			"resume_timeout": s.AppConfig.Ranking.ResumeTimeout.String(),
			"max_resumes":    s.AppConfig.Ranking.MaxResumes,
		}
	}

	// Add rate limiting stats if enabled
	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// vocabularyHandler describes the active skill vocabulary, degree tiers and weights.
func (s *Server) vocabularyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	format, err := s.responseFormat(r)
	if err != nil {
		writeAppError(w, err)
		return
	}

	info := ranking.DescribeProfile(s.Ranker.Scorer().Profile())
	if err := writeFormatted(w, info, format); err != nil {
		writeAppError(w, resumerankErrors.NewValidationError(resumerankErrors.ErrCodeInvalidFormat,
			fmt.Sprintf("format %q is not available for the vocabulary", format), err))
	}
}

// responseFormat reads the ?format= query parameter, defaulting to JSON.
func (s *Server) responseFormat(r *http.Request) (string, error) {
	format := r.URL.Query().Get("format")
	if format == "" {
		return "json", nil
	}

	var configured []string
	if s.AppConfig != nil {
		configured = s.AppConfig.App.SupportedFormats
	}
	if err := common.ValidateOutputFormat(format, configured); err != nil {
		return "", err
	}
	return format, nil
}

// writeFormatted renders data with the named formatter. Nothing is written
// when formatting fails.
func writeFormatted(w http.ResponseWriter, data any, format string) error {
	if format == "json" {
		writeJSON(w, http.StatusOK, data)
		return nil
	}

	body, err := formatters.GlobalRegistry.Format(data, format)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, body); err != nil {
		log.Printf("Failed to write %s response: %v", format, err)
	}
	return nil
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeInvalidRequest,
			"content-type must be application/json", err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeRequestTooLarge,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return resumerankErrors.NewIOError(resumerankErrors.ErrCodeInvalidRequest,
			"failed to read request body", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeInvalidRequest,
			"failed to parse JSON", err)
	}

	return nil
}

// statusFor maps an error to the HTTP status the client receives.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	var appErr *resumerankErrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case resumerankErrors.ErrCodeFileTooLarge, resumerankErrors.ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case resumerankErrors.ErrCodeSimilarityTimeout:
		return http.StatusGatewayTimeout
	}
	switch appErr.Type {
	case resumerankErrors.ErrorTypeValidation, resumerankErrors.ErrorTypeIO:
		return http.StatusBadRequest
	case resumerankErrors.ErrorTypeSimilarity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err with the status from statusFor. AppError codes and
// messages are returned to the client; anything else is reported generically.
func writeAppError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	var appErr *resumerankErrors.AppError
	if errors.As(err, &appErr) {
		writeErrorResponse(w, http.StatusText(status), appErr.Code, appErr.Message, status)
		return
	}
	writeErrorResponse(w, http.StatusText(status), "", "the request could not be completed", status)
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeErrorResponse(w, "Method not allowed", resumerankErrors.ErrCodeMethodNotAllowed,
		allowed+" required", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, code, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Code:    code,
		Message: message,
	})
}
