// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"

	"readcheck/pkg/utils"
)

func TestConfigValidate(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		c := StandardConfig()
		f(&c)
		return c
	}
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"standard", StandardConfig(), false},
		{"half overlap", HalfOverlapConfig(), false},
		{"frame not pow2", mutate(func(c *Config) { c.FrameSize = 500 }), true},
		{"zero hop", mutate(func(c *Config) { c.Hop = 0 }), true},
		{"no filters", mutate(func(c *Config) { c.Filters = 0 }), true},
		{"too many coeffs", mutate(func(c *Config) { c.Coefficients = 27 }), true},
		{"zero rate", mutate(func(c *Config) { c.SampleRate = 0 }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want wrapping ErrInvalidConfig", err)
			}
			if _, err := NewExtractor(tt.cfg); (err != nil) != tt.wantErr {
				t.Errorf("NewExtractor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNumFrames(t *testing.T) {
	std, half := StandardConfig(), HalfOverlapConfig()
	tests := []struct {
		name string
		cfg  Config
		n    int
		want int
	}{
		{"empty", std, 0, 0},
		{"one short", std, 511, 0},
		{"exactly one", std, 512, 1},
		{"one hop later", std, 672, 2},
		{"almost two", std, 671, 1},
		{"one second", std, 16000, 97},
		{"one second half overlap", half, 16000, 61},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.NumFrames(tt.n); got != tt.want {
				t.Errorf("NumFrames(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestExtractShortInput(t *testing.T) {
	e, err := NewExtractor(StandardConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{0, 1, 511} {
		m := e.Extract(make([]int16, n))
		if !m.Empty() || m.Width() != 0 {
			t.Errorf("Extract(%d samples) = %d frames, want empty", n, m.NumFrames())
		}
	}
	if m := e.Extract(nil); !m.Empty() {
		t.Errorf("Extract(nil) = %d frames, want empty", m.NumFrames())
	}
}

func TestExtractSilence(t *testing.T) {
	for _, cfg := range []Config{StandardConfig(), HalfOverlapConfig()} {
		e, err := NewExtractor(cfg)
		if err != nil {
			t.Fatal(err)
		}
		m := e.Extract(make([]int16, 16000))
		if got, want := m.NumFrames(), cfg.NumFrames(16000); got != want {
			t.Fatalf("hop %d: NumFrames() = %d, want %d", cfg.Hop, got, want)
		}
		if m.Width() != cfg.Coefficients {
			t.Fatalf("hop %d: Width() = %d, want %d", cfg.Hop, m.Width(), cfg.Coefficients)
		}

		// Every filter sees zero energy, so c0 is the summed log floor and
		// the remaining DCT rows cancel.
		wantC0 := float64(cfg.Filters) * math.Log(logFloor)
		for f, row := range m {
			if math.Abs(row[0]-wantC0) > 1e-9 {
				t.Fatalf("frame %d: c0 = %v, want %v", f, row[0], wantC0)
			}
			for c := 1; c < len(row); c++ {
				if math.Abs(row[c]) > 1e-9 {
					t.Fatalf("frame %d: c%d = %v, want 0", f, c, row[c])
				}
			}
		}
	}
}

func TestExtractTone(t *testing.T) {
	e, err := NewExtractor(StandardConfig())
	if err != nil {
		t.Fatal(err)
	}
	silent := e.Extract(make([]int16, 4000))
	tone := e.Extract(utils.GenerateComplexWave(4000, 16000))
	if tone.NumFrames() != silent.NumFrames() {
		t.Fatalf("NumFrames() = %d, want %d", tone.NumFrames(), silent.NumFrames())
	}
	for f := range tone {
		if tone[f][0] <= silent[f][0] {
			t.Errorf("frame %d: tone c0 %v not above silence c0 %v", f, tone[f][0], silent[f][0])
		}
	}

	// The workspace is reused, rows are not.
	again := e.Extract(utils.GenerateComplexWave(4000, 16000))
	if &again[0][0] == &tone[0][0] {
		t.Errorf("Extract() returned rows aliasing a previous result")
	}
	for f := range tone {
		for c := range tone[f] {
			if tone[f][c] != again[f][c] {
				t.Fatalf("Extract() not deterministic at [%d][%d]: %v vs %v", f, c, tone[f][c], again[f][c])
			}
		}
	}
}

func TestSharedBank(t *testing.T) {
	bank, err := NewBank(StandardConfig())
	if err != nil {
		t.Fatal(err)
	}
	a, b := NewExtractorWithBank(bank), NewExtractorWithBank(bank)
	sig := utils.GenerateComplexWave(2048, 16000)
	ma, mb := a.Extract(sig), b.Extract(sig)
	for f := range ma {
		for c := range ma[f] {
			if ma[f][c] != mb[f][c] {
				t.Fatalf("extractors sharing a bank disagree at [%d][%d]", f, c)
			}
		}
	}
	if a.Bank() != bank {
		t.Errorf("Bank() did not return the shared bank")
	}
}

func TestBankSpectrumLayout(t *testing.T) {
	bank, err := NewBank(StandardConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := bank.BinFrequency(1); got != 31.25 {
		t.Errorf("BinFrequency(1) = %v, want 31.25", got)
	}
	if got := bank.BinFrequency(256); got != 8000 {
		t.Errorf("BinFrequency(256) = %v, want 8000", got)
	}
	if got := bank.BinFrequency(257); got != 0 {
		t.Errorf("BinFrequency(257) = %v, want 0", got)
	}
	if bank.FFTSize() != 512 || bank.SampleRate() != 16000 {
		t.Errorf("FFTSize(), SampleRate() = %d, %v", bank.FFTSize(), bank.SampleRate())
	}
}

func TestMelScale(t *testing.T) {
	if got, want := HzToMel(700), 2595*math.Log10(2); math.Abs(got-want) > 1e-9 {
		t.Errorf("HzToMel(700) = %v, want %v", got, want)
	}
	for _, hz := range []float64{0, 100, 1000, 8000} {
		if got := MelToHz(HzToMel(hz)); math.Abs(got-hz) > 1e-6 {
			t.Errorf("MelToHz(HzToMel(%v)) = %v", hz, got)
		}
	}

	points := melBinPoints(26, 512, 16000)
	if len(points) != 28 || points[0] != 0 || points[27] != 256 {
		t.Errorf("melBinPoints() = %v, want 28 points from 0 to 256", points)
	}
	for i := 1; i < len(points); i++ {
		if points[i] < points[i-1] {
			t.Fatalf("melBinPoints() not monotonic at %d: %v", i, points)
		}
	}
}

func TestMelFilterbank(t *testing.T) {
	for _, cfg := range []Config{StandardConfig(), HalfOverlapConfig()} {
		bank := newMelFilterbank(cfg.Filters, cfg.FrameSize, cfg.SampleRate)
		if len(bank) != cfg.Filters {
			t.Fatalf("len(filterbank) = %d, want %d", len(bank), cfg.Filters)
		}
		for i, f := range bank {
			if f.start+len(f.weights) > cfg.FrameSize/2+1 {
				t.Errorf("filter %d overruns the spectrum", i)
			}
			for _, w := range f.weights {
				if w < 0 || w > 1 {
					t.Errorf("filter %d weight %v outside [0,1]", i, w)
				}
			}
		}
		flat := make([]float64, cfg.FrameSize/2+1)
		for i := range flat {
			flat[i] = 1
		}
		if got := bank[cfg.Filters-1].apply(flat); got <= 0 {
			t.Errorf("top filter response to flat spectrum = %v, want > 0", got)
		}
	}
}

func TestDCTTable(t *testing.T) {
	table := dctTable(13, 26)
	for j, v := range table[0] {
		if v != 1 {
			t.Fatalf("dct[0][%d] = %v, want 1", j, v)
		}
	}
	for i := 1; i < len(table); i++ {
		var sum float64
		for _, v := range table[i] {
			sum += v
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("sum(dct[%d]) = %v, want 0", i, sum)
		}
	}
}

func TestWindowCoefficients(t *testing.T) {
	got := windowCoefficients(5, Hamming)
	want := []float64{0.08, 0.54, 1, 0.54, 0.08}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Hamming[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"hamming", Hamming, false},
		{"", Hamming, false},
		{"HANNING", Hann, false},
		{"nuttall", Nuttall, false},
		{"rectangular", Hamming, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) = (%v, %v), want (%v, err=%v)", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestExtractAllocations(t *testing.T) {
	e, _ := NewExtractor(StandardConfig())
	sig := utils.GenerateComplexWave(16000, 16000)
	e.Extract(sig)

	// Only the returned matrix allocates; the workspace is reused.
	allocs := testing.AllocsPerRun(20, func() {
		e.Extract(sig)
	})
	if allocs > 3 {
		t.Errorf("Extract() allocations = %.1f, want <= 3", allocs)
	}
}

func BenchmarkExtract(b *testing.B) {
	e, _ := NewExtractor(StandardConfig())
	sig := utils.GenerateComplexWave(16000, 16000)
	for b.Loop() {
		e.Extract(sig)
	}
}
