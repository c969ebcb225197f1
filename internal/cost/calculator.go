// Package cost estimates the API spend of an analysis from its token
// usage. Estimates only: prices are a static table, not fetched.
package cost

const CurrencyUSD = "USD"

// tokenPrice holds USD prices per 1M tokens.
type tokenPrice struct {
	Input  float64
	Output float64
}

// vision-capable chat models the analyzer can be pointed at
var openAIPrices = map[string]tokenPrice{
	"gpt-4o-mini":  {Input: 0.15, Output: 0.60},
	"gpt-4o":       {Input: 2.50, Output: 10.00},
	"gpt-4.1":      {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
}

// CostInfo is the estimated spend of one completed call.
type CostInfo struct {
	Total    float64
	Currency string
	Known    bool
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// ForUsage estimates the cost of an analysis. Unknown models yield a
// zero estimate with Known=false rather than a guess.
func (c *Calculator) ForUsage(model string, promptTokens, completionTokens int) *CostInfo {
	price, ok := openAIPrices[model]
	if !ok {
		return &CostInfo{Currency: CurrencyUSD}
	}

	total := float64(promptTokens)/1e6*price.Input + float64(completionTokens)/1e6*price.Output
	return &CostInfo{
		Total:    total,
		Currency: CurrencyUSD,
		Known:    true,
	}
}

// SupportedModels lists the models with a price entry.
func SupportedModels() []string {
	names := make([]string, 0, len(openAIPrices))
	for name := range openAIPrices {
		names = append(names, name)
	}
	return names
}
