package cache

import (
	"time"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/provider"
)

// Entry is the payload record stored under a request ID.
// Entries are created once per upstream fetch and never updated in place;
// they disappear through TTL expiry or an explicit Delete/Clear.
type Entry struct {
	// Data is the normalized insight fetched from the provider.
	Data provider.Insight `json:"data"`

	// FetchedAt is when the upstream fetch completed.
	FetchedAt time.Time `json:"fetched_at"`
}
