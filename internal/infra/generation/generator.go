// Package generation talks to the pixel art generation provider.
package generation

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrProvider marks failures of the upstream model: transport errors,
// non-2xx replies and unusable output.
var ErrProvider = errors.New("generation provider failed")

// Generator returns the model's JSON document for a prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error)
}
