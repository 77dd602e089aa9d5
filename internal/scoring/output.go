// SPDX-License-Identifier: MIT
package scoring

// OutputKind tags which shape an oracle returned.
type OutputKind int

const (
	KindInvalid OutputKind = iota
	KindProbabilities
	KindLabel
	KindFlat
)

func (k OutputKind) String() string {
	switch k {
	case KindProbabilities:
		return "probabilities"
	case KindLabel:
		return "label"
	case KindFlat:
		return "flat"
	default:
		return "invalid"
	}
}

// Output is the oracle's result in one of three shapes. Build it with
// Probabilities, Label or Flat; the zero Output is invalid and resolves to
// the neutral verdict.
type Output struct {
	kind  OutputKind
	probs [][]float64
	label int64
	flat  []float64
}

// Probabilities wraps a per-sample probability matrix. Row 0 is read as
// [incorrect, correct].
func Probabilities(p [][]float64) Output {
	return Output{kind: KindProbabilities, probs: p}
}

// Label wraps a single predicted class label.
func Label(l int64) Output {
	return Output{kind: KindLabel, label: l}
}

// Flat wraps a flat [incorrect, correct, ...] array.
func Flat(v []float64) Output {
	return Output{kind: KindFlat, flat: v}
}

// Kind returns the shape tag.
func (o Output) Kind() OutputKind { return o.kind }

// Label confidences.
const (
	labelConfidence    = 0.8
	labelComplementary = 0.2
)

// Verdict resolves the output once into a Verdict. Malformed shapes yield
// the neutral verdict.
func (o Output) Verdict() Verdict {
	switch o.kind {
	case KindProbabilities:
		if len(o.probs) == 0 || len(o.probs[0]) < 2 {
			return NeutralVerdict()
		}
		return verdictFromPair(o.probs[0][0], o.probs[0][1])
	case KindLabel:
		if o.label == int64(Correct) {
			return Verdict{Classification: Correct, Correct: labelConfidence, Incorrect: labelComplementary}
		}
		return Verdict{Classification: Incorrect, Correct: labelComplementary, Incorrect: labelConfidence}
	case KindFlat:
		if len(o.flat) < 2 {
			return NeutralVerdict()
		}
		return verdictFromPair(o.flat[0], o.flat[1])
	default:
		return NeutralVerdict()
	}
}
