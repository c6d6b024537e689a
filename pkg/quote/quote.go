// Package quote pulls a structured price quote out of a generated reply.
// Extraction is best-effort: a nil quote is always an acceptable answer.
package quote

import (
	"strings"
)

type ServiceType string

const (
	Standard ServiceType = "standard"
	Deep     ServiceType = "deep"
)

// DefaultRegion is used when a turn carries no region or an unknown one.
const DefaultRegion = "default"

// Quote is a price mentioned in a reply.
type Quote struct {
	TotalAmount int         `json:"totalAmount"`
	ServiceType ServiceType `json:"serviceType"`
}

// PriceTable maps region to service type to amount in whole dollars.
type PriceTable map[string]map[ServiceType]int

// DefaultPrices is the built-in table.
func DefaultPrices() PriceTable {
	return PriceTable{
		DefaultRegion: {Standard: 129, Deep: 149},
	}
}

// Lookup returns the amount for a service type, resolving unknown regions to
// DefaultRegion. Region names are matched case-insensitively.
func (p PriceTable) Lookup(region string, st ServiceType) (int, bool) {
	prices, ok := p[strings.ToLower(strings.TrimSpace(region))]
	if !ok {
		prices, ok = p[DefaultRegion]
		if !ok {
			return 0, false
		}
	}
	amount, ok := prices[st]
	return amount, ok
}

type rule struct {
	marker      string
	serviceType ServiceType
	// amount is fixed for literal price markers and zero for phrase markers,
	// which take the amount from the region's table.
	amount int
}

var rules = []rule{
	{marker: "$149", serviceType: Deep, amount: 149},
	{marker: "deep clean", serviceType: Deep},
	{marker: "$129", serviceType: Standard, amount: 129},
	{marker: "standard clean", serviceType: Standard},
}

// Extractor matches reply text against an ordered marker table.
type Extractor struct {
	prices PriceTable
}

func NewExtractor(prices PriceTable) *Extractor {
	if len(prices) == 0 {
		prices = DefaultPrices()
	}
	return &Extractor{prices: prices}
}

// Extract returns the quote implied by the first matching marker, or nil.
// When the matched amount disagrees with the region's table the result is nil
// rather than a guess from a later rule.
func (e *Extractor) Extract(text, region string) *Quote {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if !strings.Contains(lower, r.marker) {
			continue
		}
		want, ok := e.prices.Lookup(region, r.serviceType)
		if !ok {
			return nil
		}
		amount := r.amount
		if amount == 0 {
			amount = want
		}
		if amount != want {
			return nil
		}
		return &Quote{TotalAmount: amount, ServiceType: r.serviceType}
	}
	return nil
}
