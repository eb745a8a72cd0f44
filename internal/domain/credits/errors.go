package credits

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicatePayment = errors.New("credits: payment already applied")
	ErrAccountNotFound  = errors.New("credits: account not found")
	ErrInvalidAmount    = errors.New("credits: amount must be positive")
)

type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("credits: insufficient balance (required %d, available %d)", e.Required, e.Available)
}

// AsInsufficient unwraps err into an InsufficientCreditsError when possible.
func AsInsufficient(err error) (*InsufficientCreditsError, bool) {
	var ice *InsufficientCreditsError
	if errors.As(err, &ice) {
		return ice, true
	}
	return nil, false
}
