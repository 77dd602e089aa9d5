// SPDX-License-Identifier: MIT
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// ErrFeatureLength is returned when a vector does not match the model.
var ErrFeatureLength = errors.New("feature vector length mismatch")

// LogisticOracle is a logistic-regression model over the feature vector:
// p(correct) = sigmoid(w·x + b). It returns [[1-p, p]].
type LogisticOracle struct {
	Weights []float64 `yaml:"weights"`
	Bias    float64   `yaml:"bias"`
	// Normalized marks weights fit on min-max normalized features.
	Normalized bool `yaml:"normalized"`
}

var _ Oracle = (*LogisticOracle)(nil)

// LoadLogisticOracle reads a model from a YAML file.
func LoadLogisticOracle(path string) (*LogisticOracle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	var m LogisticOracle
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("model %s has no weights", path)
	}
	return &m, nil
}

// Predict implements Oracle.
func (m *LogisticOracle) Predict(ctx context.Context, features []float64) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if len(features) != len(m.Weights) {
		return Output{}, fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(features), len(m.Weights))
	}
	p := sigmoid(floats.Dot(m.Weights, features) + m.Bias)
	return Probabilities([][]float64{{1 - p, p}}), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
