package marketplace

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidFeeRate = errors.New("marketplace: fee rate must be within [0,1]")
	ErrNegativeAmount = errors.New("marketplace: amount must not be negative")
)

type Split struct {
	PlatformFeeCents  int64 `json:"platformFeeCents"`
	SellerPayoutCents int64 `json:"sellerPayoutCents"`
}

// SplitAmount divides a sale into platform fee and seller payout. The fee is
// rounded half up to whole cents and the payout is the remainder, so the two
// parts always add back to amountCents.
func SplitAmount(amountCents int64, feeRate float64) (Split, error) {
	if amountCents < 0 {
		return Split{}, ErrNegativeAmount
	}
	if math.IsNaN(feeRate) || feeRate < 0 || feeRate > 1 {
		return Split{}, ErrInvalidFeeRate
	}

	fee := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(feeRate)).
		Round(0).
		IntPart()

	return Split{
		PlatformFeeCents:  fee,
		SellerPayoutCents: amountCents - fee,
	}, nil
}
