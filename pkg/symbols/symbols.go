// Package symbols validates requested cryptocurrency symbols against the
// configured whitelist.
package symbols

import (
	"fmt"
	"strings"
)

// Allowed is the whitelist of symbols the gateway will fetch.
// The provider indexes coins by their lowercase slug.
var Allowed = []string{
	"bitcoin",
	"ethereum",
	"cardano",
	"solana",
	"polkadot",
}

// InvalidSymbolError is returned when a symbol is not whitelisted.
// Its message lists the allowed symbols so clients can self-correct.
type InvalidSymbolError struct {
	Symbol string
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("invalid symbol %q. Allowed symbols: %s", e.Symbol, strings.Join(Allowed, ", "))
}

// Normalize lowercases and trims a raw symbol without validating it.
func Normalize(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

// Validate normalizes the symbol and checks it against the whitelist.
// Returns the normalized symbol or an InvalidSymbolError.
func Validate(symbol string) (string, error) {
	normalized := Normalize(symbol)

	for _, allowed := range Allowed {
		if normalized == allowed {
			return normalized, nil
		}
	}

	return "", &InvalidSymbolError{Symbol: normalized}
}
