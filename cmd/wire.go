// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"readcheck/internal/analysis"
	"readcheck/internal/config"
	"readcheck/internal/dsp"
	"readcheck/internal/log"
	"readcheck/internal/observe"
	"readcheck/internal/override"
	"readcheck/internal/scoring"
	"readcheck/internal/session"
)

// resources is the scoring stack built from a Config.
type resources struct {
	scorer     *scoring.Scorer
	pipeline   *session.Pipeline
	overrides  *override.Table
	featureLog *scoring.FeatureLog
}

// Close releases the feature log, if any.
func (r *resources) Close() error {
	if r.featureLog != nil {
		return r.featureLog.Close()
	}
	return nil
}

// newOracle loads the configured oracle. A nil oracle is valid.
func newOracle(cfg *config.Config) (scoring.Oracle, error) {
	switch cfg.Oracle.Kind {
	case config.OracleNone, "":
		log.Infof("oracle: none configured, audio attempts score neutral")
		return nil, nil
	case config.OracleLogistic:
		m, err := scoring.LoadLogisticOracle(cfg.Oracle.Model)
		if err != nil {
			return nil, fmt.Errorf("load oracle model: %w", err)
		}
		log.Infof("oracle: logistic model from %s", cfg.Oracle.Model)
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown oracle kind %q", config.ErrInvalid, cfg.Oracle.Kind)
	}
}

// newOverrides builds the override table: seed, then extra pairs, then
// the pairs file.
func newOverrides(cfg *config.Config) (*override.Table, error) {
	var t *override.Table
	if cfg.Overrides.DisableSeed {
		t = override.New(nil)
	} else {
		t = override.NewDefault()
	}
	if n := t.AddAll(cfg.Overrides.Extra); n > 0 {
		log.Infof("overrides: added %d pairs from config", n)
	}
	if cfg.Overrides.File != "" {
		n, err := t.LoadFile(cfg.Overrides.File)
		if err != nil {
			return nil, err
		}
		log.Infof("overrides: added %d pairs from %s", n, cfg.Overrides.File)
	}
	return t, nil
}

// newResources wires oracle, scorer, overrides and pipeline. With live set
// the scorer skips conditioning because the capture path already applied
// it.
func newResources(cfg *config.Config, metrics *observe.Metrics, live bool) (*resources, error) {
	oracle, err := newOracle(cfg)
	if err != nil {
		return nil, err
	}
	extractor, err := analysis.NewExtractor(cfg.ExtractorConfig())
	if err != nil {
		return nil, err
	}
	aggregator := analysis.NewAggregator(cfg.Layout(), cfg.Features.Coefficients)

	opts := []scoring.Option{
		scoring.WithDenoiser(dsp.NewDenoiser(cfg.DenoiserConfig())),
		scoring.WithDenoiseMode(cfg.DenoiseMode()),
		scoring.WithAGC(dsp.NewAGC(cfg.Denoise.AGCTarget, cfg.Denoise.AGCMaxGain)),
		scoring.WithBreaker(scoring.NewBreaker(scoring.BreakerConfig{
			Name:         cfg.Oracle.Kind,
			MaxFailures:  cfg.Oracle.BreakerThreshold,
			ResetTimeout: cfg.Oracle.BreakerReset,
		})),
		scoring.WithMetrics(metrics),
	}
	if oracle != nil {
		opts = append(opts, scoring.WithOracle(oracle))
	}
	if cfg.Oracle.Normalize {
		opts = append(opts, scoring.WithNormalizer(scoring.TrainingMinMax()))
	}
	if live {
		opts = append(opts, scoring.WithoutConditioning())
	}

	res := &resources{}
	if cfg.Oracle.FeatureLog != "" {
		res.featureLog, err = scoring.OpenFeatureLog(cfg.Oracle.FeatureLog, aggregator.Size())
		if err != nil {
			return nil, err
		}
		opts = append(opts, scoring.WithFeatureLog(res.featureLog, scoring.Classification(cfg.Oracle.FeatureLabel)))
	}

	res.overrides, err = newOverrides(cfg)
	if err != nil {
		return nil, errors.Join(err, res.Close())
	}
	res.scorer = scoring.NewScorer(extractor, aggregator, opts...)
	res.pipeline = session.NewPipeline(res.scorer,
		session.WithOverrides(res.overrides),
		session.WithPipelineMetrics(metrics),
	)
	return res, nil
}
