// Package testutil provides testing utilities for the insights gateway.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock provider endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockProvider is a configurable mock market-data provider for testing.
// It records request counts so tests can assert retry behavior.
type MockProvider struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses map[string][]MockResponse
	served    map[string]int

	// RequestCount is the total number of requests received.
	RequestCount int

	// LastAPIKey is the X-CMC_PRO_API_KEY header of the last request.
	LastAPIKey string
}

// NewMockProvider creates a mock provider server.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		responses: make(map[string][]MockResponse),
		served:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := r.URL.Query().Get("slug")

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastAPIKey = r.Header.Get("X-CMC_PRO_API_KEY")

		queue := mock.responses[slug]
		if len(queue) == 0 {
			mock.mu.Unlock()
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"status":{"error_message":"no mock response for %s"}}`, slug)
			return
		}

		resp := queue[0]
		// Keep serving the last configured response once the queue drains.
		if len(queue) > 1 {
			mock.responses[slug] = queue[1:]
		}
		mock.served[slug]++
		mock.mu.Unlock()

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		fmt.Fprint(w, resp.Body)
	}))

	return mock
}

// URL returns the mock server's base URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Close shuts the mock server down.
func (m *MockProvider) Close() {
	m.server.Close()
}

// SetResponse configures a single response served for every request for
// the slug.
func (m *MockProvider) SetResponse(slug string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[slug] = []MockResponse{resp}
}

// QueueResponses configures a sequence of responses for a slug; the last
// one repeats once the queue drains.
func (m *MockProvider) QueueResponses(slug string, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[slug] = append([]MockResponse(nil), resps...)
}

// Requests reports how many requests were served for the slug.
func (m *MockProvider) Requests(slug string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.served[slug]
}

// TotalRequests reports the total number of requests received.
func (m *MockProvider) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// HealthyBody builds a valid provider payload for the slug.
func HealthyBody(slug, name string) string {
	return fmt.Sprintf(`{
		"data": {
			"%s": {
				"name": "%s",
				"category": "coin",
				"description": "%s is a cryptocurrency.",
				"logo": "https://example.com/%s.png",
				"date_launched": "2009-01-03T00:00:00.000Z",
				"self_reported_circulating_supply": 19500000,
				"self_reported_market_cap": 850000000000.5
			}
		}
	}`, slug, name, name, slug)
}
