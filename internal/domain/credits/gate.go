package credits

import (
	"context"
	"fmt"
)

type Feature string

const (
	FeatureGenerate     Feature = "generate_sprite"
	FeatureInterpolate  Feature = "interpolate"
	FeaturePalette      Feature = "palette"
	FeatureAutocomplete Feature = "autocomplete"
)

var featureCosts = map[Feature]int64{
	FeatureGenerate:     5,
	FeatureInterpolate:  3, // per generated frame
	FeaturePalette:      1,
	FeatureAutocomplete: 3,
}

// CostOf returns the price of running feature over units (frames for
// interpolation, 1 otherwise).
func CostOf(f Feature, units int) (int64, error) {
	unit, ok := featureCosts[f]
	if !ok {
		return 0, fmt.Errorf("unknown metered feature %q", f)
	}
	if units < 1 {
		units = 1
	}
	return unit * int64(units), nil
}

type BalanceReader interface {
	BalanceOf(ctx context.Context, accountID string) (int64, error)
}

// Gate is the request-time affordability check. It fails fast before any
// provider call; the authoritative check is the conditional UPDATE in
// Ledger.Debit, which runs after the metered operation succeeds.
type Gate struct {
	balances BalanceReader
}

func NewGate(balances BalanceReader) *Gate {
	return &Gate{balances: balances}
}

func (g *Gate) EnsureAffordable(ctx context.Context, accountID string, cost int64) error {
	if cost <= 0 {
		return ErrInvalidAmount
	}
	available, err := g.balances.BalanceOf(ctx, accountID)
	if err != nil {
		return err
	}
	if available < cost {
		return &InsufficientCreditsError{Required: cost, Available: available}
	}
	return nil
}
