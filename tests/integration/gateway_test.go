package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/api"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/insights"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/testutil"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/auth"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/cache"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/provider"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/ratelimit"
)

const apiToken = "integration-test-token"

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// setupGateway wires the full stack against a real Redis and a mock provider.
func setupGateway(t *testing.T, redisClient *redis.Client, rateLimit int) (*httptest.Server, *testutil.MockProvider, *cache.Manager) {
	t.Helper()

	mock := testutil.NewMockProvider()
	t.Cleanup(mock.Close)

	client, err := provider.New(provider.Config{
		BaseURL:        mock.URL(),
		APIKey:         "provider-key",
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 5 * time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create provider client: %v", err)
	}

	manager := cache.NewManager(redisClient, zerolog.Nop())
	service := insights.NewService(manager, client, 10*time.Minute, zerolog.Nop())
	handler := api.NewHandler(service, manager, zerolog.Nop())
	gate := auth.NewGate(apiToken, zerolog.Nop())
	limiter := ratelimit.NewLimiter(rateLimit, time.Minute, zerolog.Nop())

	srv := api.NewServer(api.ServerConfig{
		Port:              "0",
		RateLimitRequests: rateLimit,
		RateLimitWindow:   time.Minute,
	}, handler, gate, limiter, zerolog.Nop())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return ts, mock, manager
}

func postInsight(t *testing.T, ts *httptest.Server, symbol string) (*http.Response, api.InsightResponse) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"symbol": symbol})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/insights", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var out api.InsightResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp, out
}

func getInsight(t *testing.T, ts *httptest.Server, requestID string) (*http.Response, api.InsightResponse) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/insights/"+requestID, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var out api.InsightResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp, out
}

// TestFullRequestFlow covers the complete loop: auth -> rate limit -> cache
// miss -> provider fetch -> cache write -> replay by fingerprint and by ID.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ts, mock, _ := setupGateway(t, redisClient, 100)
	mock.SetResponse("bitcoin", testutil.MockResponse{
		StatusCode: 200,
		Body:       testutil.HealthyBody("bitcoin", "Bitcoin"),
	})

	resp, first := postInsight(t, ts, "bitcoin")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d, want 200", resp.StatusCode)
	}
	if first.Cached {
		t.Error("first request should be a cache miss")
	}
	if first.RequestID == "" {
		t.Fatal("first request should carry a request ID")
	}
	if first.Data.Name != "Bitcoin" {
		t.Errorf("name = %q, want Bitcoin", first.Data.Name)
	}

	resp, byID := getInsight(t, ts, first.RequestID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", resp.StatusCode)
	}
	if !byID.Cached {
		t.Error("lookup by request ID should report cached")
	}
	if !reflect.DeepEqual(byID.Data, first.Data) {
		t.Errorf("payload by ID differs: %+v vs %+v", byID.Data, first.Data)
	}

	resp, second := postInsight(t, ts, "bitcoin")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat POST status = %d, want 200", resp.StatusCode)
	}
	if !second.Cached {
		t.Error("repeat request should be a cache hit")
	}
	if second.RequestID != first.RequestID {
		t.Errorf("repeat request ID = %q, want %q", second.RequestID, first.RequestID)
	}

	if mock.TotalRequests() != 1 {
		t.Errorf("provider requests = %d, want 1", mock.TotalRequests())
	}
}

// TestNormalizationSharesCacheSlot checks that casing and whitespace
// variants of a symbol replay the same cached entry.
func TestNormalizationSharesCacheSlot(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ts, mock, _ := setupGateway(t, redisClient, 100)
	mock.SetResponse("ethereum", testutil.MockResponse{
		StatusCode: 200,
		Body:       testutil.HealthyBody("ethereum", "Ethereum"),
	})

	_, first := postInsight(t, ts, "Ethereum")
	_, second := postInsight(t, ts, "  ethereum ")

	if second.RequestID != first.RequestID {
		t.Errorf("variant request IDs differ: %q vs %q", first.RequestID, second.RequestID)
	}
	if mock.TotalRequests() != 1 {
		t.Errorf("provider requests = %d, want 1", mock.TotalRequests())
	}
}

// TestRetryThenRecover checks a transient 5xx is retried and the recovered
// result is cached.
func TestRetryThenRecover(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ts, mock, _ := setupGateway(t, redisClient, 100)
	mock.QueueResponses("solana",
		testutil.MockResponse{StatusCode: 503, Body: "{}"},
		testutil.MockResponse{StatusCode: 200, Body: testutil.HealthyBody("solana", "Solana")},
	)

	resp, out := postInsight(t, ts, "solana")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d, want 200", resp.StatusCode)
	}
	if out.Cached {
		t.Error("recovered fetch should not report cached")
	}
	if mock.TotalRequests() != 2 {
		t.Errorf("provider requests = %d, want 2", mock.TotalRequests())
	}

	// The recovered result must be served from cache on replay.
	_, second := postInsight(t, ts, "solana")
	if !second.Cached {
		t.Error("replay after recovery should be a cache hit")
	}
	if mock.TotalRequests() != 2 {
		t.Errorf("provider requests after replay = %d, want 2", mock.TotalRequests())
	}
}

// TestRateLimitAcrossCacheHits checks cache hits still consume rate limit
// budget.
func TestRateLimitAcrossCacheHits(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ts, mock, _ := setupGateway(t, redisClient, 2)
	mock.SetResponse("bitcoin", testutil.MockResponse{
		StatusCode: 200,
		Body:       testutil.HealthyBody("bitcoin", "Bitcoin"),
	})

	for i := 0; i < 2; i++ {
		resp, _ := postInsight(t, ts, "bitcoin")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, resp.StatusCode)
		}
	}

	resp, _ := postInsight(t, ts, "bitcoin")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", resp.Header.Get("Retry-After"))
	}
}

// TestClearRemovesCachedEntries checks the shutdown-path clear leaves
// nothing replayable behind.
func TestClearRemovesCachedEntries(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ts, mock, manager := setupGateway(t, redisClient, 100)
	mock.SetResponse("cardano", testutil.MockResponse{
		StatusCode: 200,
		Body:       testutil.HealthyBody("cardano", "Cardano"),
	})

	_, first := postInsight(t, ts, "cardano")

	deleted, err := manager.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Clear deleted %d keys, want 2", deleted)
	}

	resp, _ := getInsight(t, ts, first.RequestID)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after clear status = %d, want 404", resp.StatusCode)
	}

	// The next query fetches fresh.
	_, refetched := postInsight(t, ts, "cardano")
	if refetched.Cached {
		t.Error("fetch after clear should be a miss")
	}
	if refetched.RequestID == first.RequestID {
		t.Error("fetch after clear should mint a new request ID")
	}
}
