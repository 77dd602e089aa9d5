// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"readcheck/internal/analysis"
	"readcheck/internal/scoring"
	"readcheck/internal/watchdog"
	"readcheck/pkg/utils"
)

const testTimeout = 40 * time.Millisecond

func newTestScorer(t *testing.T, oracle scoring.Oracle) *scoring.Scorer {
	t.Helper()
	ext, err := analysis.NewExtractor(analysis.StandardConfig())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	agg := analysis.NewAggregator(analysis.LayoutMeanDeltaDelta, 13)
	return scoring.NewScorer(ext, agg, scoring.WithOracle(oracle))
}

func labelOracle(label int64) scoring.Oracle {
	return scoring.FuncOracle(func(context.Context, []float64) (scoring.Output, error) {
		return scoring.Label(label), nil
	})
}

func speech() []int16 { return utils.GenerateComplexWave(4000, 16000) }

func TestPipelineDecide(t *testing.T) {
	tests := []struct {
		name        string
		oracle      scoring.Oracle
		noScorer    bool
		expected    string
		heard       string
		samples     []int16
		wantCorrect bool
		wantSource  Source
	}{
		{"oracle correct", labelOracle(1), false, "father", "", speech(), true, SourceOracle},
		{"oracle incorrect", labelOracle(0), false, "father", "", speech(), false, SourceOracle},
		{"oracle correct with heard", labelOracle(1), false, "father", "father", speech(), true, SourceOracle},
		{"override beats oracle", labelOracle(1), false, "enormous", "enormus", speech(), false, SourceOverride},
		{"oracle correct heard close", labelOracle(1), false, "walking", "walkin", speech(), true, SourceOracle},
		{"oracle correct heard far", labelOracle(1), false, "elephant", "cat", speech(), false, SourcePhonetic},
		{"oracle correct heard below accept", labelOracle(1), false, "father", "pader", speech(), false, SourcePhonetic},
		{"oracle incorrect heard close", labelOracle(0), false, "walking", "walkin", speech(), false, SourceOracle},
		{"oracle incorrect heard exact", labelOracle(0), false, "walking", "Walking!", speech(), true, SourcePhonetic},
		{"phonetic close", labelOracle(1), false, "singing", "singin", nil, true, SourcePhonetic},
		{"phonetic far", labelOracle(1), false, "singing", "xyz", nil, false, SourcePhonetic},
		{"too short for a frame", labelOracle(1), false, "cat", "cat", speech()[:100], true, SourcePhonetic},
		{"no scorer", nil, true, "cat", "cat", speech(), true, SourcePhonetic},
		{"nothing to judge", labelOracle(1), false, "cat", "", nil, false, SourceNone},
		{"punctuation only heard", labelOracle(1), false, "cat", "?!", nil, false, SourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p *Pipeline
			if tt.noScorer {
				p = NewPipeline(nil)
			} else {
				p = NewPipeline(newTestScorer(t, tt.oracle))
			}
			d := p.Decide(context.Background(), tt.expected, tt.heard, tt.samples)
			if d.Correct() != tt.wantCorrect || d.Source != tt.wantSource {
				t.Errorf("Decide() = (%v, %s), want (%v, %s)", d.Correct(), d.Source, tt.wantCorrect, tt.wantSource)
			}
			checkConsistent(t, d.Verdict)
			if tt.heard != "" && d.Source != SourceNone && d.Match == nil {
				t.Error("Decide().Match = nil, want the heard comparison")
			}
		})
	}
}

// checkConsistent fails when the larger confidence disagrees with the
// classification.
func checkConsistent(t *testing.T, v scoring.Verdict) {
	t.Helper()
	if v.IsCorrect() && v.Correct <= v.Incorrect {
		t.Errorf("verdict %v is correct without the larger confidence", v)
	}
	if !v.IsCorrect() && v.Correct > v.Incorrect {
		t.Errorf("verdict %v is incorrect with the larger correct confidence", v)
	}
}

func probOracle(correct float64) scoring.Oracle {
	return scoring.FuncOracle(func(context.Context, []float64) (scoring.Output, error) {
		return scoring.Probabilities([][]float64{{1 - correct, correct}}), nil
	})
}

func TestPipelineForcedVerdictConfidences(t *testing.T) {
	tests := []struct {
		name       string
		expected   string
		heard      string
		wantSource Source
	}{
		{"override", "enormous", "enormus", SourceOverride},
		{"far heard word", "elephant", "cat", SourcePhonetic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(newTestScorer(t, probOracle(0.9)))
			d := p.Decide(context.Background(), tt.expected, tt.heard, speech())
			if d.Correct() || d.Source != tt.wantSource {
				t.Fatalf("Decide() = (%v, %s), want (false, %s)", d.Correct(), d.Source, tt.wantSource)
			}
			want := scoring.Verdict{Classification: scoring.Incorrect, Correct: 0.1, Incorrect: 0.9}
			if math.Abs(d.Verdict.Correct-want.Correct) > 1e-9 || math.Abs(d.Verdict.Incorrect-want.Incorrect) > 1e-9 {
				t.Errorf("Decide().Verdict = %v, want %v", d.Verdict, want)
			}
		})
	}
}

func TestPipelineNothingToJudgeIsEmptyVerdict(t *testing.T) {
	d := NewPipeline(nil).Decide(context.Background(), "cat", "", nil)
	if d.Verdict != scoring.EmptyVerdict() {
		t.Errorf("Decide().Verdict = %v, want %v", d.Verdict, scoring.EmptyVerdict())
	}
}

func TestPipelineOverrideAddedAtRuntime(t *testing.T) {
	p := NewPipeline(newTestScorer(t, labelOracle(1)))
	ctx := context.Background()
	if d := p.Decide(ctx, "ship", "sip", speech()); !d.Correct() {
		t.Fatalf("Decide() before Add = %v, want correct", d.Verdict)
	}
	p.Overrides().Add("sip", "ship")
	if d := p.Decide(ctx, "ship", "sip", speech()); d.Correct() || d.Source != SourceOverride {
		t.Errorf("Decide() after Add = (%v, %s), want (false, override)", d.Correct(), d.Source)
	}
}

func newTestSession(t *testing.T, words []string, oracle scoring.Oracle, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithWatchdog(watchdog.WithTimeouts(testTimeout, 2*testTimeout))}, opts...)
	s := NewSession(words, NewPipeline(newTestScorer(t, oracle)), opts...)
	t.Cleanup(s.Stop)
	return s
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not complete")
	}
}

func TestSessionReadsEveryWord(t *testing.T) {
	mock := &utils.MockTransport{}
	s := newTestSession(t, []string{"The cat,", "sat."}, labelOracle(1), WithTransport(mock), WithID("abc"))
	ctx := context.Background()
	s.Start(ctx)

	if got := s.Words(); len(got) != 3 || got[0] != "the" || got[2] != "sat" {
		t.Fatalf("Words() = %v, want [the cat sat]", got)
	}
	for i := range 3 {
		r, err := s.Submit(ctx, Attempt{Index: i, Samples: speech()})
		if err != nil {
			t.Fatalf("Submit(%d) error = %v", i, err)
		}
		if r.Outcome != OutcomeCorrect || r.SessionID != "abc" {
			t.Errorf("Submit(%d) = %+v, want correct in session abc", i, r)
		}
	}
	waitDone(t, s)

	if _, err := s.Submit(ctx, Attempt{Index: 3}); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("Submit() after completion = %v, want ErrSessionComplete", err)
	}
	sum := s.Summary()
	if sum.Correct != 3 || sum.Decided != 3 || sum.Accuracy != 1 {
		t.Errorf("Summary() = %+v", sum)
	}
	if n := len(mock.Messages()); n != 3 {
		t.Errorf("transport got %d messages, want 3", n)
	}
	var got []int
	for r := range s.Updates() {
		got = append(got, r.Index)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("Updates() indices = %v, want [0 1 2]", got)
	}
}

func TestSessionTimeoutsAdvance(t *testing.T) {
	s := newTestSession(t, []string{"a", "b"}, labelOracle(1))
	s.Start(context.Background())
	waitDone(t, s)

	results := s.Results()
	if len(results) != 2 {
		t.Fatalf("Results() has %d entries, want 2", len(results))
	}
	for _, r := range results {
		if r.Outcome != OutcomeSkipped || r.Source != SourceTimeout || r.Verdict.IsCorrect() {
			t.Errorf("result %d = %+v, want skipped by timeout", r.Index, r)
		}
	}
	if sum := s.Summary(); sum.Skipped != 2 || sum.Accuracy != 0 {
		t.Errorf("Summary() = %+v", sum)
	}
}

func TestSessionRejectsAttempts(t *testing.T) {
	s := newTestSession(t, []string{"one", "two"}, labelOracle(1),
		WithWatchdog(watchdog.WithTimeouts(time.Hour, time.Hour)))
	ctx := context.Background()

	if _, err := s.Submit(ctx, Attempt{Index: 0}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Submit() before Start = %v, want ErrNotStarted", err)
	}
	s.Start(ctx)
	if _, err := s.Submit(ctx, Attempt{Index: 1}); !errors.Is(err, ErrStaleAttempt) {
		t.Errorf("Submit(wrong index) = %v, want ErrStaleAttempt", err)
	}
	if i, w, ok := s.Current(); i != 0 || w != "one" || !ok {
		t.Errorf("Current() = (%d, %q, %v), want (0, one, true)", i, w, ok)
	}

	s.Stop()
	if _, err := s.Submit(ctx, Attempt{Index: 0}); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("Submit() after Stop = %v, want ErrSessionComplete", err)
	}
	if _, _, ok := s.Current(); ok {
		t.Error("Current() ok after Stop")
	}
}

func TestSessionTimeoutWinsOverSlowOracle(t *testing.T) {
	var calls atomic.Int32
	slow := scoring.FuncOracle(func(context.Context, []float64) (scoring.Output, error) {
		calls.Add(1)
		time.Sleep(3 * testTimeout)
		return scoring.Label(1), nil
	})
	s := newTestSession(t, []string{"cat", "dog"}, slow)
	ctx := context.Background()
	s.Start(ctx)

	if _, err := s.Submit(ctx, Attempt{Index: 0, Samples: speech()}); !errors.Is(err, ErrStaleAttempt) {
		t.Fatalf("Submit() = %v, want ErrStaleAttempt", err)
	}
	results := s.Results()
	if len(results) == 0 || results[0].Outcome != OutcomeSkipped {
		t.Fatalf("Results() = %+v, want word 0 skipped", results)
	}
	if calls.Load() != 1 {
		t.Errorf("oracle called %d times, want 1", calls.Load())
	}
	for _, r := range results {
		if r.Index == 0 && r.Outcome != OutcomeSkipped {
			t.Errorf("word 0 decided twice: %+v", results)
		}
	}
}

func TestSessionEmptyPassage(t *testing.T) {
	s := newTestSession(t, []string{"", "...", "  "}, labelOracle(1))
	s.Start(context.Background())
	waitDone(t, s)
	if sum := s.Summary(); sum.Words != 0 || sum.Decided != 0 {
		t.Errorf("Summary() = %+v, want empty", sum)
	}
}

func TestSessionMixedOutcomes(t *testing.T) {
	s := newTestSession(t, []string{"enormous", "singing", "cat"}, labelOracle(1),
		WithWatchdog(watchdog.WithTimeouts(time.Hour, time.Hour)))
	ctx := context.Background()
	s.Start(ctx)

	attempts := []struct {
		a    Attempt
		want Outcome
		src  Source
	}{
		{Attempt{Index: 0, Heard: "enormus", Samples: speech()}, OutcomeIncorrect, SourceOverride},
		{Attempt{Index: 1, Heard: "singin"}, OutcomeCorrect, SourcePhonetic},
		{Attempt{Index: 2}, OutcomeIncorrect, SourceNone},
	}
	for _, tt := range attempts {
		r, err := s.Submit(ctx, tt.a)
		if err != nil {
			t.Fatalf("Submit(%d) error = %v", tt.a.Index, err)
		}
		if r.Outcome != tt.want || r.Source != tt.src {
			t.Errorf("Submit(%d) = (%s, %s), want (%s, %s)", tt.a.Index, r.Outcome, r.Source, tt.want, tt.src)
		}
	}
	waitDone(t, s)
	if sum := s.Summary(); sum.Correct != 1 || sum.Incorrect != 2 {
		t.Errorf("Summary() = %+v", sum)
	}
}
