package llm

import "strings"

// ModelPrice is the USD price per one million tokens.
type ModelPrice struct {
	Input  float64
	Output float64
}

// Pricing maps model names to their token prices.
type Pricing map[string]ModelPrice

// DefaultPricing returns list prices for the models Deckforge uses by default.
func DefaultPricing() Pricing {
	return Pricing{
		"o4-mini":                    {Input: 1.10, Output: 4.40},
		"o3-mini":                    {Input: 1.10, Output: 4.40},
		"gpt-4o":                     {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
		"gpt-4o-mini-search-preview": {Input: 0.15, Output: 0.60},
		"gpt-4o-search-preview":      {Input: 2.50, Output: 10.00},
		"gpt-4.1":                    {Input: 2.00, Output: 8.00},
		"gpt-4.1-mini":               {Input: 0.40, Output: 1.60},
		"gpt-4.1-nano":               {Input: 0.10, Output: 0.40},
	}
}

// Cost returns the USD cost of a call. Unknown models cost zero.
func (p Pricing) Cost(model string, inputTokens, outputTokens int64) float64 {
	price, ok := p[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return 0
	}

	return (float64(inputTokens)*price.Input + float64(outputTokens)*price.Output) / 1_000_000
}
