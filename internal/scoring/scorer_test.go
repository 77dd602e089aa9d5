// SPDX-License-Identifier: MIT
package scoring

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"readcheck/internal/analysis"
	"readcheck/internal/observe"
	"readcheck/pkg/utils"
)

func newTestScorer(t *testing.T, opts ...Option) *Scorer {
	t.Helper()
	ext, err := analysis.NewExtractor(analysis.StandardConfig())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	agg := analysis.NewAggregator(analysis.LayoutMeanDeltaDelta, analysis.StandardConfig().Coefficients)
	return NewScorer(ext, agg, opts...)
}

func fixedOracle(out Output) Oracle {
	return FuncOracle(func(context.Context, []float64) (Output, error) { return out, nil })
}

func TestScoreFixedVerdicts(t *testing.T) {
	tone := utils.GenerateComplexWave(16000, 16000)

	tests := []struct {
		name     string
		samples  []int16
		opts     []Option
		want     Verdict
		degraded bool
		frames   bool
	}{
		{"nil audio", nil, []Option{WithOracle(fixedOracle(Label(1)))}, EmptyVerdict(), false, false},
		{"shorter than a frame", tone[:400], []Option{WithOracle(fixedOracle(Label(1)))}, EmptyVerdict(), false, false},
		{"no oracle", tone, nil, NeutralVerdict(), true, true},
		{"oracle error", tone, []Option{WithOracle(FuncOracle(func(context.Context, []float64) (Output, error) {
			return Output{}, errors.New("model offline")
		}))}, NeutralVerdict(), true, true},
		{"oracle panic", tone, []Option{WithOracle(FuncOracle(func(context.Context, []float64) (Output, error) {
			panic("bad tensor")
		}))}, NeutralVerdict(), true, true},
		{"malformed output", tone, []Option{WithOracle(fixedOracle(Flat(nil)))}, NeutralVerdict(), false, true},
		{"label", tone, []Option{WithOracle(fixedOracle(Label(1)))}, Verdict{Correct, 0.8, 0.2}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScorer(t, tt.opts...)
			got := s.Score(context.Background(), "cat", tt.samples)
			if got.Verdict != tt.want {
				t.Errorf("Score().Verdict = %v, want %v", got.Verdict, tt.want)
			}
			if got.Degraded != tt.degraded {
				t.Errorf("Score().Degraded = %v, want %v", got.Degraded, tt.degraded)
			}
			if got.Scoreable() != tt.frames {
				t.Errorf("Score().Scoreable() = %v, want %v", got.Scoreable(), tt.frames)
			}
		})
	}
}

func TestScoreFeatureVector(t *testing.T) {
	var seen []float64
	oracle := FuncOracle(func(_ context.Context, f []float64) (Output, error) {
		seen = f
		return Probabilities([][]float64{{0.25, 0.75}}), nil
	})
	s := newTestScorer(t, WithOracle(oracle))

	rep := s.Score(context.Background(), "cat", utils.GenerateComplexWave(16000, 16000))
	if len(seen) != 39 {
		t.Fatalf("oracle got %d features, want 39", len(seen))
	}
	if rep.Frames != 97 {
		t.Errorf("Score().Frames = %d, want 97", rep.Frames)
	}
	if !rep.Verdict.IsCorrect() || rep.Verdict.Correct != 0.75 {
		t.Errorf("Score().Verdict = %v, want CORRECT 0.75", rep.Verdict)
	}
}

func TestScoreNormalizes(t *testing.T) {
	var seen []float64
	oracle := FuncOracle(func(_ context.Context, f []float64) (Output, error) {
		seen = f
		return Label(0), nil
	})
	s := newTestScorer(t, WithOracle(oracle), WithNormalizer(TrainingMinMax()))
	s.Score(context.Background(), "cat", utils.GenerateNoise(8000, 0.3, 1))

	if len(seen) != 39 {
		t.Fatalf("oracle got %d features, want 39", len(seen))
	}
	for i, v := range seen {
		if v < 0 || v > 1 {
			t.Fatalf("feature %d = %v, want within [0,1]", i, v)
		}
	}
}

func TestScoreBreakerBypassesOracle(t *testing.T) {
	calls := 0
	oracle := FuncOracle(func(context.Context, []float64) (Output, error) {
		calls++
		return Output{}, errors.New("down")
	})
	b := NewBreaker(BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	s := newTestScorer(t, WithOracle(oracle), WithBreaker(b))
	tone := utils.GenerateComplexWave(4000, 16000)

	for range 5 {
		if got := s.Score(context.Background(), "cat", tone).Verdict; got != NeutralVerdict() {
			t.Fatalf("Score().Verdict = %v, want neutral", got)
		}
	}
	if calls != 2 {
		t.Errorf("oracle called %d times, want 2", calls)
	}
	if b.State() != BreakerOpen {
		t.Errorf("State() = %v, want open", b.State())
	}
}

func TestScoreFeatureLog(t *testing.T) {
	var buf bytes.Buffer
	fl := NewFeatureLog(&buf, 39, true)
	s := newTestScorer(t, WithFeatureLog(fl, Correct))

	s.Score(context.Background(), "cat", utils.GenerateComplexWave(4000, 16000))
	s.Score(context.Background(), "dog", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want header + 1 row: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "cat,") || !strings.HasSuffix(lines[1], ",1") {
		t.Errorf("row = %q, want cat,...,1", lines[1])
	}
}

func TestScoreRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	oracle := FuncOracle(func(context.Context, []float64) (Output, error) { panic("x") })
	s := newTestScorer(t, WithOracle(oracle), WithMetrics(m))
	s.Score(context.Background(), "cat", utils.GenerateComplexWave(4000, 16000))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	stages := map[string]bool{}
	var failures int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			switch met.Name {
			case "readcheck.stage.duration":
				for _, dp := range met.Data.(metricdata.Histogram[float64]).DataPoints {
					v, _ := dp.Attributes.Value("stage")
					stages[v.AsString()] = true
				}
			case "readcheck.oracle.failures":
				for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
					failures += dp.Value
				}
			}
		}
	}
	for _, st := range []string{observe.StageDenoise, observe.StageAGC, observe.StageExtract, observe.StageAggregate, observe.StageOracle} {
		if !stages[st] {
			t.Errorf("stage %q not recorded", st)
		}
	}
	if failures != 1 {
		t.Errorf("oracle failures = %d, want 1", failures)
	}
}

func BenchmarkScore(b *testing.B) {
	ext, _ := analysis.NewExtractor(analysis.StandardConfig())
	agg := analysis.NewAggregator(analysis.LayoutMeanDeltaDelta, 13)
	s := NewScorer(ext, agg, WithOracle(&LogisticOracle{Weights: make([]float64, 39)}))
	tone := utils.GenerateComplexWave(16000, 16000)
	ctx := context.Background()
	for b.Loop() {
		s.Score(ctx, "cat", tone)
	}
}
