package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"resumerank/internal/config"
	resumerankErrors "resumerank/internal/errors"
)

// stubProvider returns queued results, or a constant vector once the queue is
// empty.
type stubProvider struct {
	mu      sync.Mutex
	calls   atomic.Int64
	results []error
	vec     []float32
	delay   time.Duration
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) > 0 {
		err := s.results[0]
		s.results = s.results[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.vec, nil
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-1" }
func (s *stubProvider) Close() error  { return nil }

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Cosine: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Cosine([]float32{1}, []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestHashingProviderDeterministic(t *testing.T) {
	p := NewHashingProvider(256)
	ctx := context.Background()

	a1, _ := p.Embed(ctx, "Senior Python developer with SQL")
	a2, _ := p.Embed(ctx, "Senior Python developer with SQL")
	if len(a1) != 256 {
		t.Fatalf("expected 256 dimensions, got %d", len(a1))
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}

	self, _ := Cosine(a1, a2)
	if math.Abs(self-1) > 1e-6 {
		t.Errorf("self similarity = %v, want 1", self)
	}
}

func TestHashingProviderRelatedTextsScoreHigher(t *testing.T) {
	p := NewHashingProvider(0)
	ctx := context.Background()

	job, _ := p.Embed(ctx, "python developer with sql and machine learning experience")
	close1, _ := p.Embed(ctx, "experienced python developer, strong sql, machine learning projects")
	far, _ := p.Embed(ctx, "barista with latte art and customer service skills")

	near, _ := Cosine(job, close1)
	distant, _ := Cosine(job, far)
	if near <= distant {
		t.Errorf("expected related text to score higher: near=%v distant=%v", near, distant)
	}
}

func TestHashingProviderEmptyTextAndCancel(t *testing.T) {
	p := NewHashingProvider(8)
	vec, err := p.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", vec)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Embed(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTokenizeKeepsSymbols(t *testing.T) {
	got := tokenize("C++, C# and Node.js!")
	want := []string{"c++", "c#", "and", "node", "js"}
	if len(got) != len(want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL+"/", "", time.Second)
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("unexpected embedding %v", vec)
	}
}

func TestOllamaProviderStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewOllamaProvider(server.URL, "m", time.Second).Embed(context.Background(), "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
	if !isRetryableError(err) {
		t.Error("503 should be retryable")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad input"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"429", &StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"400", &StatusError{StatusCode: http.StatusBadRequest}, false},
		{"502 wrapped", errors.Join(errors.New("ctx"), &StatusError{StatusCode: http.StatusBadGateway}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetrierRetriesThenSucceeds(t *testing.T) {
	r := retrier{maxRetries: 3, baseDelay: time.Millisecond, logger: resumerankErrors.NewNopLogger()}
	attempts := 0
	vec, err := r.do(context.Background(), "test", func() ([]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, &StatusError{StatusCode: http.StatusServiceUnavailable}
		}
		return []float32{1}, nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if attempts != 3 || len(vec) != 1 {
		t.Errorf("attempts = %d, vec = %v", attempts, vec)
	}
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := retrier{maxRetries: 5, baseDelay: time.Millisecond, logger: resumerankErrors.NewNopLogger()}
	attempts := 0
	_, err := r.do(context.Background(), "test", func() ([]float32, error) {
		attempts++
		return nil, &StatusError{StatusCode: http.StatusUnauthorized}
	})
	if err == nil || attempts != 1 {
		t.Errorf("expected one attempt and an error, got %d attempts, err=%v", attempts, err)
	}
}

func TestRetrierBackoffIsCapped(t *testing.T) {
	r := retrier{baseDelay: time.Second}
	if d := r.backoff(1); d < time.Second || d > 1100*time.Millisecond {
		t.Errorf("backoff(1) = %v", d)
	}
	if d := r.backoff(40); d != maxBackoff {
		t.Errorf("backoff(40) = %v, want %v", d, maxBackoff)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)

	_ = c.Set(ctx, "a", []float32{1})
	_ = c.Set(ctx, "b", []float32{2})
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatal("expected a to be cached")
	}
	_ = c.Set(ctx, "c", []float32{3})

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Error("expected a to survive")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", []float32{1})
	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, -1.5, 3.25, float32(math.Inf(1))}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated vector")
	}
}

func TestEngineCachesEmbeddings(t *testing.T) {
	stub := &stubProvider{vec: []float32{1, 0}}
	engine := NewEngine(stub, WithCache(NewMemoryCache(10, 0)))

	for range 3 {
		score, err := engine.Similarity(context.Background(), "job text", "resume text")
		if err != nil {
			t.Fatalf("Similarity: %v", err)
		}
		if math.Abs(score-1) > 1e-9 {
			t.Errorf("score = %v, want 1", score)
		}
	}
	if got := stub.calls.Load(); got != 2 {
		t.Errorf("provider calls = %d, want 2", got)
	}
	stats := engine.Stats()
	if stats["cacheHits"].(int64) != 4 {
		t.Errorf("cacheHits = %v, want 4", stats["cacheHits"])
	}
}

func TestEngineBlankTextSkipsProvider(t *testing.T) {
	stub := &stubProvider{vec: []float32{1}}
	engine := NewEngine(stub)

	score, err := engine.Similarity(context.Background(), "job", "  ")
	if err != nil || score != 0 {
		t.Fatalf("Similarity = %v, %v; want 0, nil", score, err)
	}
	if stub.calls.Load() != 0 {
		t.Error("provider should not be called for blank text")
	}
}

func TestEngineWrapsFailures(t *testing.T) {
	stub := &stubProvider{results: []error{errors.New("boom")}, vec: []float32{1}}
	engine := NewEngine(stub)

	_, err := engine.Similarity(context.Background(), "a", "b")
	if resumerankErrors.Code(err) != resumerankErrors.ErrCodeSimilarityFailed {
		t.Errorf("code = %q, want %q", resumerankErrors.Code(err), resumerankErrors.ErrCodeSimilarityFailed)
	}
	if !resumerankErrors.IsType(err, resumerankErrors.ErrorTypeSimilarity) {
		t.Error("expected similarity error type")
	}
}

func TestEngineTimeout(t *testing.T) {
	stub := &stubProvider{vec: []float32{1}, delay: time.Second}
	engine := NewEngine(stub)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := engine.Similarity(ctx, "a", "b")
	if resumerankErrors.Code(err) != resumerankErrors.ErrCodeSimilarityTimeout {
		t.Errorf("code = %q, want %q", resumerankErrors.Code(err), resumerankErrors.ErrCodeSimilarityTimeout)
	}
}

// gatedProvider blocks every call until release is closed or the call's
// context ends.
type gatedProvider struct {
	calls   atomic.Int64
	started chan struct{}
	release chan struct{}
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
		return []float32{1, 0}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedProvider) Name() string  { return "gated" }
func (g *gatedProvider) Model() string { return "gated-1" }
func (g *gatedProvider) Close() error  { return nil }

func TestEngineSharedEmbeddingSurvivesCallerCancel(t *testing.T) {
	provider := newGatedProvider()
	engine := NewEngine(provider)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := engine.Embed(firstCtx, "shared job description")
		firstErr <- err
	}()
	<-provider.started

	type result struct {
		vec []float32
		err error
	}
	second := make(chan result, 1)
	go func() {
		vec, err := engine.Embed(context.Background(), "shared job description")
		second <- result{vec, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("first caller error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("first caller did not return after its context was cancelled")
	}

	close(provider.release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("second caller failed with %v after the first caller cancelled", res.err)
		}
		if len(res.vec) != 2 {
			t.Errorf("vector = %v", res.vec)
		}
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}

	if got := provider.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1 shared call", got)
	}
}

func TestEngineCallTimeoutBoundsSharedCall(t *testing.T) {
	provider := newGatedProvider()
	engine := NewEngine(provider, WithCallTimeout(20*time.Millisecond))

	_, err := engine.Similarity(context.Background(), "a", "b")
	if resumerankErrors.Code(err) != resumerankErrors.ErrCodeSimilarityTimeout {
		t.Errorf("code = %q, want %q", resumerankErrors.Code(err), resumerankErrors.ErrCodeSimilarityTimeout)
	}
}

func TestEngineRetriesTransientErrors(t *testing.T) {
	stub := &stubProvider{
		results: []error{&StatusError{StatusCode: http.StatusTooManyRequests}},
		vec:     []float32{1, 1},
	}
	engine := NewEngine(stub, WithRetry(2, time.Millisecond))

	if _, err := engine.Similarity(context.Background(), "a", "a"); err != nil {
		t.Fatalf("Similarity: %v", err)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	cfg := config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}
	breaker := NewEmbeddingCircuitBreaker("stub", cfg, nil)
	if !breaker.IsHealthy() {
		t.Fatal("new breaker should be healthy")
	}

	fail := func() ([]float32, error) { return nil, errors.New("down") }
	for range 2 {
		_, _ = breaker.Execute(fail)
	}
	if breaker.IsHealthy() {
		t.Error("breaker should be open after repeated failures")
	}
	if state := breaker.GetStats()["state"]; state != "open" {
		t.Errorf("state = %v, want open", state)
	}

	stub := &stubProvider{vec: []float32{1}}
	engine := NewEngine(stub, WithCircuitBreaker(breaker))
	_, err := engine.Similarity(context.Background(), "a", "b")
	if resumerankErrors.Code(err) != resumerankErrors.ErrCodeSimilarityFailed {
		t.Errorf("expected SIMILARITY_FAILED while open, got %v", err)
	}
	if stub.calls.Load() != 0 {
		t.Error("provider must not be called while the breaker is open")
	}
}

func TestDisabledCircuitBreakerIsNil(t *testing.T) {
	breaker := NewEmbeddingCircuitBreaker("stub", config.CircuitBreakerConfig{Enabled: false}, nil)
	if breaker != nil {
		t.Fatal("expected nil breaker")
	}
	if !breaker.IsHealthy() || breaker.GetStats()["enabled"] != false {
		t.Error("nil breaker should report healthy and disabled")
	}
}

func TestNewProviderAndCache(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, config.SimilarityConfig{Provider: "local", Dimensions: 32})
	if err != nil || p.Name() != "local" {
		t.Fatalf("NewProvider(local) = %v, %v", p, err)
	}

	_, err = NewProvider(ctx, config.SimilarityConfig{Provider: "word2vec"})
	if resumerankErrors.Code(err) != resumerankErrors.ErrCodeUnsupportedProvider {
		t.Errorf("expected UNSUPPORTED_PROVIDER, got %v", err)
	}

	c, err := NewCache(ctx, config.CacheConfig{Backend: "memory", MaxEntries: 4})
	if err != nil {
		t.Fatalf("NewCache(memory): %v", err)
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("expected *MemoryCache, got %T", c)
	}

	if _, err := NewCache(ctx, config.CacheConfig{Backend: "disk"}); err == nil {
		t.Error("expected error for unknown cache backend")
	}
}
