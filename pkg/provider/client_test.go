package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/testutil"
)

// newTestClient builds a client against a mock provider with fast backoff.
func newTestClient(t *testing.T, mock *testutil.MockProvider) *Client {
	t.Helper()

	client, err := New(Config{
		BaseURL:     mock.URL(),
		APIKey:      "test-key",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	client.retry.InitialBackoff = time.Millisecond
	client.retry.MaxBackoff = 5 * time.Millisecond
	return client
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, zerolog.Nop()); err == nil {
		t.Fatal("New should reject an empty base URL")
	}

	client, err := New(Config{BaseURL: "http://localhost:9"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if client.retry.MaxAttempts != DefaultRetryConfig().MaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", client.retry.MaxAttempts, DefaultRetryConfig().MaxAttempts)
	}
}

func TestFetch_Success(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("bitcoin", testutil.MockResponse{
		StatusCode: 200,
		Body:       testutil.HealthyBody("bitcoin", "Bitcoin"),
	})

	client := newTestClient(t, mock)

	insight, err := client.Fetch(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if insight.Symbol != "bitcoin" {
		t.Errorf("Symbol = %q, want bitcoin", insight.Symbol)
	}
	if insight.Name != "Bitcoin" {
		t.Errorf("Name = %q, want Bitcoin", insight.Name)
	}
	if insight.CirculatingSupply != 19500000 {
		t.Errorf("CirculatingSupply = %v, want 19500000", insight.CirculatingSupply)
	}
	if insight.MarketCap != 850000000000.5 {
		t.Errorf("MarketCap = %v, want 850000000000.5", insight.MarketCap)
	}
	if mock.LastAPIKey != "test-key" {
		t.Errorf("API key header = %q, want test-key", mock.LastAPIKey)
	}
	if got := mock.Requests("bitcoin"); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestFetch_StatusClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantKind     Kind
		wantAttempts int
	}{
		{"bad request", 400, KindInvalid, 1},
		{"upstream auth failure", 401, KindAuthFailed, 1},
		{"not found", 404, KindNotFound, 1},
		{"other client error", 429, KindInvalid, 1},
		{"server error retried", 500, KindUnavailable, 3},
		{"bad gateway retried", 502, KindUnavailable, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockProvider()
			defer mock.Close()
			mock.SetResponse("bitcoin", testutil.MockResponse{StatusCode: tt.status, Body: "{}"})

			client := newTestClient(t, mock)

			_, err := client.Fetch(context.Background(), "bitcoin")
			if err == nil {
				t.Fatal("Fetch should have failed")
			}

			var provErr *Error
			if !errors.As(err, &provErr) {
				t.Fatalf("error %v is not a *provider.Error", err)
			}
			if provErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", provErr.Kind, tt.wantKind)
			}
			if provErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", provErr.StatusCode, tt.status)
			}
			if got := mock.Requests("bitcoin"); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestFetch_RecoversAfterTransientFailure(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.QueueResponses("bitcoin",
		testutil.MockResponse{StatusCode: 503, Body: "{}"},
		testutil.MockResponse{StatusCode: 200, Body: testutil.HealthyBody("bitcoin", "Bitcoin")},
	)

	client := newTestClient(t, mock)

	insight, err := client.Fetch(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if insight.Name != "Bitcoin" {
		t.Errorf("Name = %q, want Bitcoin", insight.Name)
	}
	if got := mock.Requests("bitcoin"); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestFetch_ConnectionFailure(t *testing.T) {
	// Point at a server that is already closed.
	mock := testutil.NewMockProvider()
	baseURL := mock.URL()
	mock.Close()

	client, err := New(Config{BaseURL: baseURL, MaxAttempts: 3}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	client.retry.InitialBackoff = time.Millisecond
	client.retry.MaxBackoff = 5 * time.Millisecond

	_, err = client.Fetch(context.Background(), "bitcoin")
	if err == nil {
		t.Fatal("Fetch should have failed")
	}

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error %v is not a *provider.Error", err)
	}
	if provErr.Kind != KindTimeout {
		t.Errorf("Kind = %q, want %q", provErr.Kind, KindTimeout)
	}
}

// A provider that accepts the connection but never answers within the
// per-attempt timeout burns the full attempt budget.
func TestFetch_TimeoutRetriesToExhaustion(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("bitcoin", testutil.MockResponse{
		StatusCode: 200,
		Body:       testutil.HealthyBody("bitcoin", "Bitcoin"),
		Delay:      300 * time.Millisecond,
	})

	client, err := New(Config{
		BaseURL:        mock.URL(),
		Timeout:        50 * time.Millisecond,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	client.retry.MaxBackoff = 5 * time.Millisecond

	_, err = client.Fetch(context.Background(), "bitcoin")
	if err == nil {
		t.Fatal("Fetch should have failed")
	}

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error %v is not a *provider.Error", err)
	}
	if provErr.Kind != KindTimeout {
		t.Errorf("Kind = %q, want %q", provErr.Kind, KindTimeout)
	}
	if got := mock.Requests("bitcoin"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestParseInsight_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing symbol key", `{"data":{"ethereum":{"name":"Ethereum","self_reported_circulating_supply":1,"self_reported_market_cap":2}}}`},
		{"missing supply", `{"data":{"bitcoin":{"name":"Bitcoin","self_reported_market_cap":2}}}`},
		{"missing market cap", `{"data":{"bitcoin":{"name":"Bitcoin","self_reported_circulating_supply":1}}}`},
		{"null required fields", `{"data":{"bitcoin":{"name":"Bitcoin","self_reported_circulating_supply":null,"self_reported_market_cap":null}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInsight([]byte(tt.body), "bitcoin")
			if err == nil {
				t.Fatal("parseInsight should have failed")
			}
			var provErr *Error
			if !errors.As(err, &provErr) {
				t.Fatalf("error %v is not a *provider.Error", err)
			}
			if provErr.Kind != KindParseFailure {
				t.Errorf("Kind = %q, want %q", provErr.Kind, KindParseFailure)
			}
		})
	}
}

func TestParseInsight_OptionalFields(t *testing.T) {
	body := `{"data":{"solana":{
		"name": "Solana",
		"category": "coin",
		"description": "fast chain",
		"platform": {"name": "Mainnet Beta"},
		"self_reported_circulating_supply": 400000000,
		"self_reported_market_cap": 60000000000
	}}}`

	insight, err := parseInsight([]byte(body), "solana")
	if err != nil {
		t.Fatalf("parseInsight returned error: %v", err)
	}
	if insight.Platform == nil || *insight.Platform != "Mainnet Beta" {
		t.Errorf("Platform = %v, want Mainnet Beta", insight.Platform)
	}
	if insight.Logo != nil {
		t.Errorf("Logo = %v, want nil", insight.Logo)
	}
	if insight.DateLaunched != nil {
		t.Errorf("DateLaunched = %v, want nil", insight.DateLaunched)
	}
}

func TestParseInsight_NameFallback(t *testing.T) {
	body := `{"data":{"cardano":{
		"self_reported_circulating_supply": 1,
		"self_reported_market_cap": 2
	}}}`

	insight, err := parseInsight([]byte(body), "cardano")
	if err != nil {
		t.Fatalf("parseInsight returned error: %v", err)
	}
	if insight.Name != "Cardano" {
		t.Errorf("Name = %q, want capitalized fallback Cardano", insight.Name)
	}
}
