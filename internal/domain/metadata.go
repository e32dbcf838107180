package domain

// DefaultDecimals is assumed for any token without known metadata.
const DefaultDecimals uint8 = 18

// TokenMetadata is display metadata for a token.
type TokenMetadata struct {
	Symbol   string // empty when unknown
	Decimals uint8
}

// DisplaySymbol returns the symbol, or fallback when none is known.
func (m TokenMetadata) DisplaySymbol(fallback string) string {
	if m.Symbol == "" {
		return fallback
	}
	return m.Symbol
}
