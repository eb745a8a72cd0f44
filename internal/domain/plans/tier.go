package plans

import "strings"

// Tier constants (single source of truth)
const (
	TierFree   = "free"
	TierPro    = "pro"
	TierStudio = "studio"
)

type Plan struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	PriceCents     int64   `json:"priceCents"`
	MonthlyCredits int64   `json:"monthlyCredits"`
	CanSell        bool    `json:"canSell"`
	FeeRate        float64 `json:"platformFeeRate"` // platform cut of marketplace sales
}

var catalog = []Plan{
	{ID: TierFree, Name: "Sprynt Free", PriceCents: 0, MonthlyCredits: 20},
	{ID: TierPro, Name: "Sprynt Pro", PriceCents: 800, MonthlyCredits: 200, CanSell: true, FeeRate: 0.15},
	{ID: TierStudio, Name: "Sprynt Studio", PriceCents: 2000, MonthlyCredits: 1000, CanSell: true, FeeRate: 0.10},
}

func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id string) (Plan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Purchasable reports whether a plan can be bought through checkout.
func Purchasable(id string) (Plan, bool) {
	p, ok := Lookup(id)
	if !ok || p.PriceCents == 0 {
		return Plan{}, false
	}
	return p, true
}

// Normalize maps stored plan values onto a known tier; anything unknown is free.
func Normalize(tier string) string {
	if p, ok := Lookup(tier); ok {
		return p.ID
	}
	return TierFree
}

func CanSell(tier string) bool {
	p, ok := Lookup(tier)
	return ok && p.CanSell
}

// FeeRateFor returns the platform fee rate applied to a seller on the given tier.
func FeeRateFor(tier string, fallback float64) float64 {
	p, ok := Lookup(tier)
	if !ok || !p.CanSell {
		return fallback
	}
	return p.FeeRate
}
