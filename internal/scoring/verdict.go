// SPDX-License-Identifier: MIT
package scoring

import "fmt"

// Classification is the binary correctness decision. The values match the
// labels the oracle was fit on.
type Classification int

const (
	Incorrect Classification = 0
	Correct   Classification = 1
)

func (c Classification) String() string {
	if c == Correct {
		return "CORRECT"
	}
	return "INCORRECT"
}

// MarshalText encodes the classification by name.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (c *Classification) UnmarshalText(b []byte) error {
	switch string(b) {
	case "CORRECT":
		*c = Correct
	case "INCORRECT":
		*c = Incorrect
	default:
		return fmt.Errorf("unknown classification %q", b)
	}
	return nil
}

// Verdict is a classification with both class confidences.
type Verdict struct {
	Classification Classification `json:"classification"`
	Correct        float64        `json:"correct_confidence"`
	Incorrect      float64        `json:"incorrect_confidence"`
}

// IsCorrect reports whether the classification is Correct.
func (v Verdict) IsCorrect() bool {
	return v.Classification == Correct
}

func (v Verdict) String() string {
	return fmt.Sprintf("%v (correct %.3f, incorrect %.3f)", v.Classification, v.Correct, v.Incorrect)
}

// WithClassification returns v reclassified as c, with the larger
// confidence moved onto c so the pair agrees with the classification.
func (v Verdict) WithClassification(c Classification) Verdict {
	hi, lo := max(v.Correct, v.Incorrect), min(v.Correct, v.Incorrect)
	if c == Correct {
		return Verdict{Classification: Correct, Correct: hi, Incorrect: lo}
	}
	return Verdict{Classification: Incorrect, Correct: lo, Incorrect: hi}
}

// NeutralVerdict is returned when the oracle is missing or fails.
func NeutralVerdict() Verdict {
	return Verdict{Classification: Incorrect, Correct: 0.5, Incorrect: 0.5}
}

// EmptyVerdict is returned for audio with nothing to score.
func EmptyVerdict() Verdict {
	return Verdict{Classification: Incorrect, Correct: 0, Incorrect: 1}
}

// verdictFromPair normalizes (incorrect, correct) when their sum is positive
// and classifies Correct only when correct strictly exceeds incorrect.
func verdictFromPair(incorrect, correct float64) Verdict {
	if sum := incorrect + correct; sum > 0 {
		incorrect /= sum
		correct /= sum
	}
	v := Verdict{Classification: Incorrect, Correct: correct, Incorrect: incorrect}
	if correct > incorrect {
		v.Classification = Correct
	}
	return v
}
