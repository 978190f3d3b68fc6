package cache

import (
	"fmt"
	"strings"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/symbols"
)

// Key prefixes for the two record levels. Clear only ever touches keys
// under these prefixes.
const (
	queryKeyPrefix  = "insights:query:"
	resultKeyPrefix = "insights:result:"
)

// Fingerprint derives the deterministic first-level cache key from the
// normalized request parameters.
//
// Example: Fingerprint("Bitcoin ") -> "symbol=bitcoin"
func Fingerprint(symbol string) string {
	return fmt.Sprintf("symbol=%s", symbols.Normalize(symbol))
}

// queryKey builds the alias key (fingerprint -> request ID).
func queryKey(fingerprint string) string {
	return queryKeyPrefix + fingerprint
}

// resultKey builds the payload key (request ID -> entry).
func resultKey(requestID string) string {
	return resultKeyPrefix + requestID
}

// isManagedKey reports whether a raw Redis key belongs to this cache.
func isManagedKey(key string) bool {
	return strings.HasPrefix(key, queryKeyPrefix) || strings.HasPrefix(key, resultKeyPrefix)
}
