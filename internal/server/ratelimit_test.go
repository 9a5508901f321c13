package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterManager(t *testing.T) {
	m := NewRateLimiter(60, 2, time.Minute, nil)
	defer m.Close()

	assert.True(t, m.Allow("ip:a"))
	assert.True(t, m.Allow("ip:a"))
	assert.False(t, m.Allow("ip:a"), "burst exhausted")
	assert.True(t, m.Allow("ip:b"), "keys are independent")

	stats := m.GetStats()
	assert.Equal(t, 2, stats["active_limiters"])
	assert.Equal(t, int64(1), stats["rejected_requests"])

	m.Close()
	m.Close()
}

func TestLimiterCleanup(t *testing.T) {
	m := NewRateLimiter(60, 1, time.Hour, nil)
	defer m.Close()

	m.GetLimiter("ip:stale")
	m.mu.Lock()
	m.lastSeen["ip:stale"] = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()
	m.GetLimiter("ip:fresh")

	m.cleanup(time.Hour)
	assert.Equal(t, 1, m.GetStats()["active_limiters"])
}

func TestGetRateLimitKey(t *testing.T) {
	req := httptest.NewRequest("POST", "/rank", nil)
	req.RemoteAddr = "203.0.113.9:5555"

	assert.Equal(t, "ip:203.0.113.9", getRateLimitKey(req, true, true), "falls back to IP without a key")
	assert.Equal(t, "", getRateLimitKey(req, true, false))

	req.Header.Set("Authorization", "Bearer secret-token")
	assert.Equal(t, "api:secret-token", getRateLimitKey(req, true, true))
	assert.Equal(t, "ip:203.0.113.9", getRateLimitKey(req, false, true))

	assert.Equal(t, "api_key", limitType("api:secret-token"))
	assert.Equal(t, "ip", limitType("ip:203.0.113.9"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.10:1234", "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.10", "192.0.2.10"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.1, 10.0.0.1"}, "192.0.2.10:1", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "192.0.2.10:1", "198.51.100.2"},
		{"invalid real ip", map[string]string{"X-Real-IP": "nope"}, "192.0.2.10:1", "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/health", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcdefgh****", maskAPIKey("abcdefghijkl"))
}
