// SPDX-License-Identifier: MIT
package scoring

import (
	"context"
	"errors"
)

// ErrOracleUnavailable is returned when no oracle is configured.
var ErrOracleUnavailable = errors.New("scoring oracle unavailable")

// Oracle classifies a fixed-length feature vector. It is an external
// collaborator: implementations may block, fail or panic, and the Scorer
// turns all of those into the neutral verdict.
type Oracle interface {
	Predict(ctx context.Context, features []float64) (Output, error)
}

// FuncOracle adapts a function to Oracle.
type FuncOracle func(ctx context.Context, features []float64) (Output, error)

// Predict calls f.
func (f FuncOracle) Predict(ctx context.Context, features []float64) (Output, error) {
	return f(ctx, features)
}

var _ Oracle = FuncOracle(nil)
