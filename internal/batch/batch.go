// SPDX-License-Identifier: MIT

// Package batch turns a directory of labelled WAV recordings into a
// feature CSV for retraining the scoring model. Each worker owns a full
// pipeline (denoiser, AGC, extractor, aggregator); rows are written in
// filename order regardless of which worker finished first.
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"readcheck/internal/analysis"
	"readcheck/internal/audio"
	"readcheck/internal/config"
	"readcheck/internal/dsp"
	"readcheck/internal/log"
	"readcheck/internal/scoring"
)

const (
	// DefaultOutput is the CSV file name used when none is given.
	DefaultOutput = "mfcc_features.csv"
	// MinSamples is the shortest recording kept (0.2 s at 16 kHz).
	MinSamples = 3200
	// DefaultTargetRMS is the level every recording is normalized to.
	DefaultTargetRMS = 0.1
)

// ErrNoFiles is returned when the input directory holds no WAV files.
var ErrNoFiles = errors.New("no WAV files found")

// Label is the pronunciation label encoded in a file name.
type Label int

const (
	LabelUnknown   Label = -1
	LabelIncorrect Label = 0
	LabelCorrect   Label = 1
)

// ParseLabel reads the label from a file name.
func ParseLabel(filename string) Label {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "correctlypronounced"), strings.Contains(lower, "_correct"):
		return LabelCorrect
	case strings.Contains(lower, "mispronounced"), strings.Contains(lower, "mispronunced"),
		strings.Contains(lower, "_incorrect"):
		return LabelIncorrect
	default:
		return LabelUnknown
	}
}

var (
	leadingDigits = regexp.MustCompile(`^\d+`)
	labelSuffixes = strings.NewReplacer(
		"_mispronounced", "",
		"_mispronunced", "",
		"_correctlypronounced", "",
		"_correct", "",
		"_incorrect", "",
	)
)

// WordFromFilename strips the extension, speaker number and label suffix:
// "31keep_mispronounced.wav" is "keep".
func WordFromFilename(filename string) string {
	name := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(filename), ".wav"), ".WAV")
	name = leadingDigits.ReplaceAllString(name, "")
	return strings.TrimSpace(labelSuffixes.Replace(name))
}

// Options configures a batch run.
type Options struct {
	Features  analysis.Config
	Layout    analysis.Layout
	Denoise   dsp.DenoiseConfig
	AGCTarget float64
	AGCMax    float64
	TargetRMS float64
	Workers   int
}

// OptionsFrom derives batch options from the application config.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Features:  cfg.ExtractorConfig(),
		Layout:    cfg.Layout(),
		Denoise:   cfg.DenoiserConfig(),
		AGCTarget: cfg.Denoise.AGCTarget,
		AGCMax:    cfg.Denoise.AGCMaxGain,
		TargetRMS: DefaultTargetRMS,
	}
}

// Row is one extracted recording.
type Row struct {
	Filename string
	Word     string
	Features []float64
	Label    Label
}

// Stats counts what a run did.
type Stats struct {
	Processed int
	Skipped   int
}

// worker is one pipeline. It is not safe for concurrent use.
type worker struct {
	denoiser   *dsp.Denoiser
	agc        *dsp.AGC
	extractor  analysis.FeatureExtractor
	aggregator analysis.Aggregator
	targetRMS  float64
	sampleRate int
}

func newWorker(opts Options) (*worker, error) {
	ex, err := analysis.NewExtractor(opts.Features)
	if err != nil {
		return nil, err
	}
	return &worker{
		denoiser:   dsp.NewDenoiser(opts.Denoise),
		agc:        dsp.NewAGC(opts.AGCTarget, opts.AGCMax),
		extractor:  ex,
		aggregator: analysis.NewAggregator(opts.Layout, opts.Features.Coefficients),
		targetRMS:  opts.TargetRMS,
		sampleRate: int(opts.Features.SampleRate),
	}, nil
}

// features runs lightweight denoise, AGC, RMS normalization, extraction
// and aggregation. It returns nil when no frame could be extracted.
func (w *worker) features(samples []int16) []float64 {
	x := w.denoiser.LightweightDenoise(samples)
	x = w.agc.Apply(x)
	x = dsp.RMSNormalize(x, w.targetRMS)
	m := w.extractor.Extract(x)
	if m.Empty() {
		return nil
	}
	return w.aggregator.Aggregate(m)
}

// process turns one file into a row, or nil when it is skipped.
func (w *worker) process(path string) *Row {
	name := filepath.Base(path)
	label := ParseLabel(name)
	if label == LabelUnknown {
		log.Warnf("batch: unknown label for %s", name)
		return nil
	}
	clip, err := audio.ReadWAV(path, w.sampleRate)
	if err != nil {
		log.Warnf("batch: %v", err)
		return nil
	}
	if len(clip.Samples) < MinSamples {
		log.Warnf("batch: %s too short (%d samples)", name, len(clip.Samples))
		return nil
	}
	features := w.features(clip.Samples)
	if features == nil {
		log.Warnf("batch: feature extraction failed for %s", name)
		return nil
	}
	log.Debugf("batch: %s -> %d features", name, len(features))
	return &Row{Filename: name, Word: WordFromFilename(name), Features: features, Label: label}
}

// ListWAV returns the .wav files in dir sorted by name.
func ListWAV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	slices.Sort(files)
	return files, nil
}

// Extract processes files in parallel and returns one entry per file, nil
// for skipped ones, in input order.
func Extract(ctx context.Context, files []string, opts Options) ([]*Row, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	pool := make([]*worker, min(workers, len(files)))
	for i := range pool {
		w, err := newWorker(opts)
		if err != nil {
			return nil, err
		}
		pool[i] = w
	}

	rows := make([]*Row, len(files))
	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for _, w := range pool {
		g.Go(func() error {
			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows[i] = w.process(files[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteCSV writes filename,word,f0..fN,label rows, skipping nil entries.
func WriteCSV(w io.Writer, width int, rows []*Row) (Stats, error) {
	var st Stats
	cw := csv.NewWriter(w)
	if err := cw.Write(scoring.FeatureHeader(width, "filename", "word")); err != nil {
		return st, err
	}
	for _, r := range rows {
		if r == nil {
			st.Skipped++
			continue
		}
		rec := make([]string, 0, width+3)
		rec = append(rec, r.Filename, r.Word)
		rec = append(rec, scoring.FormatFeatures(r.Features)...)
		rec = append(rec, strconv.Itoa(int(r.Label)))
		if err := cw.Write(rec); err != nil {
			return st, err
		}
		st.Processed++
	}
	cw.Flush()
	return st, cw.Error()
}

// Run extracts every WAV file in dir and writes the CSV to out.
func Run(ctx context.Context, dir string, out io.Writer, opts Options) (Stats, error) {
	files, err := ListWAV(dir)
	if err != nil {
		return Stats{}, err
	}
	log.Infof("batch: found %d WAV files in %s", len(files), dir)

	rows, err := Extract(ctx, files, opts)
	if err != nil {
		return Stats{}, err
	}
	st, err := WriteCSV(out, 3*opts.Features.Coefficients, rows)
	if err != nil {
		return st, fmt.Errorf("write csv: %w", err)
	}
	log.Infof("batch: processed %d, skipped %d", st.Processed, st.Skipped)
	return st, nil
}
