package provider

// Insight is the normalized market entity built from a provider response.
// It is created once per fetch and never mutated.
type Insight struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Description       string  `json:"description"`
	DateLaunched      *string `json:"date_launched,omitempty"`
	Logo              *string `json:"logo,omitempty"`
	Platform          *string `json:"platform,omitempty"`
	CirculatingSupply float64 `json:"circulating_supply"`
	MarketCap         float64 `json:"market_cap"`
}

// coinPayload mirrors the provider's per-coin JSON object.
type coinPayload struct {
	Name              string        `json:"name"`
	Category          string        `json:"category"`
	Description       string        `json:"description"`
	DateLaunched      *string       `json:"date_launched"`
	Logo              *string       `json:"logo"`
	Platform          *coinPlatform `json:"platform"`
	CirculatingSupply *float64      `json:"self_reported_circulating_supply"`
	MarketCap         *float64      `json:"self_reported_market_cap"`
}

type coinPlatform struct {
	Name string `json:"name"`
}

// providerResponse mirrors the provider's envelope: coins are indexed by
// their slug under "data".
type providerResponse struct {
	Data map[string]coinPayload `json:"data"`
}
