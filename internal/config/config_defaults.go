package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Scoring
	v.SetDefault("scoring.weights.similarity", 0.55)
	v.SetDefault("scoring.weights.skillFit", 0.25)
	v.SetDefault("scoring.weights.experience", 0.12)
	v.SetDefault("scoring.weights.degree", 0.08)
	v.SetDefault("scoring.experienceCeilingYears", 8.0)
	v.SetDefault("scoring.profileFile", "")
	v.SetDefault("scoring.watchProfile", false)
	v.SetDefault("scoring.watchDebounce", time.Second)

	// Similarity
	v.SetDefault("similarity.provider", "local")
	v.SetDefault("similarity.model", "")
	v.SetDefault("similarity.apiKey", "")
	v.SetDefault("similarity.baseURL", "")
	v.SetDefault("similarity.timeout", 30*time.Second)
	v.SetDefault("similarity.maxRetries", 3)
	v.SetDefault("similarity.retryBaseDelay", time.Second)
	v.SetDefault("similarity.dimensions", 1024)

	v.SetDefault("similarity.circuitBreaker.enabled", true)
	v.SetDefault("similarity.circuitBreaker.maxRequests", 3)
	v.SetDefault("similarity.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("similarity.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("similarity.circuitBreaker.minRequests", 3)
	v.SetDefault("similarity.circuitBreaker.failureThreshold", 0.6)

	v.SetDefault("similarity.cache.backend", "memory")
	v.SetDefault("similarity.cache.maxEntries", 4096)
	v.SetDefault("similarity.cache.ttl", 24*time.Hour)
	v.SetDefault("similarity.cache.redis.addr", "")
	v.SetDefault("similarity.cache.redis.password", "")
	v.SetDefault("similarity.cache.redis.db", 0)
	v.SetDefault("similarity.cache.redis.keyPrefix", "resumerank:emb:")

	// Ranking
	v.SetDefault("ranking.concurrency", 4)
	v.SetDefault("ranking.resumeTimeout", 60*time.Second)
	v.SetDefault("ranking.maxResumes", 500)

	// Server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 32*1024*1024)
	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown", "csv"})
	v.SetDefault("app.maxFileSize", 10*1024*1024)

	// Vault
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.similarityKey", "")
	v.SetDefault("vault.secrets.redisPassword", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability
	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "resumerank")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
}
