// SPDX-License-Identifier: MIT

// Package observe holds the OpenTelemetry instruments for the reading
// pipeline and the Prometheus bridge that exposes them on /metrics.
//
// Tests should build their own [Metrics] with [NewMetrics] over a manual
// reader. All Record helpers accept a nil receiver and do nothing, so
// components can run without metrics wired.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every readcheck metric.
const meterName = "readcheck"

// Pipeline stage names used with StageDuration.
const (
	StageDenoise   = "denoise"
	StageAGC       = "agc"
	StageExtract   = "extract"
	StageAggregate = "aggregate"
	StageOracle    = "oracle"
	StageResolve   = "resolve"
)

// Metrics holds every instrument. The OTel types handle their own
// synchronisation.
type Metrics struct {
	// Words counts decided words. Attributes: outcome, source.
	Words metric.Int64Counter

	// StageDuration tracks per-stage pipeline latency. Attribute: stage.
	StageDuration metric.Float64Histogram

	// WatchdogTimeouts counts words skipped because no verdict arrived.
	WatchdogTimeouts metric.Int64Counter

	// OverridesApplied counts verdicts forced incorrect by the override table.
	OverridesApplied metric.Int64Counter

	// OracleFailures counts oracle errors, panics and breaker rejections.
	// Attribute: reason.
	OracleFailures metric.Int64Counter

	// ActiveSessions tracks live reading sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets (seconds) cover single-frame DSP up to a slow oracle.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Words, err = m.Int64Counter("readcheck.words",
		metric.WithDescription("Decided words by outcome and verdict source."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("readcheck.stage.duration",
		metric.WithDescription("Latency of each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WatchdogTimeouts, err = m.Int64Counter("readcheck.watchdog.timeouts",
		metric.WithDescription("Words skipped by the timeout watchdog."),
	); err != nil {
		return nil, err
	}
	if met.OverridesApplied, err = m.Int64Counter("readcheck.override.applied",
		metric.WithDescription("Verdicts forced incorrect by the override table."),
	); err != nil {
		return nil, err
	}
	if met.OracleFailures, err = m.Int64Counter("readcheck.oracle.failures",
		metric.WithDescription("Oracle calls that produced the neutral verdict."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("readcheck.sessions.active",
		metric.WithDescription("Number of live reading sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a shared instance built on the global meter
// provider. Call it after InitProvider so the Prometheus bridge sees it.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordWord counts one decided word.
func (m *Metrics) RecordWord(ctx context.Context, outcome, source string) {
	if m == nil {
		return
	}
	m.Words.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

// RecordStage records the time elapsed since start for stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordTimeout counts one watchdog timeout.
func (m *Metrics) RecordTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.WatchdogTimeouts.Add(ctx, 1)
}

// RecordOverride counts one applied override.
func (m *Metrics) RecordOverride(ctx context.Context) {
	if m == nil {
		return
	}
	m.OverridesApplied.Add(ctx, 1)
}

// RecordOracleFailure counts one neutral verdict caused by reason.
func (m *Metrics) RecordOracleFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.OracleFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// SessionStarted and SessionEnded move the active-session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded decrements the active-session gauge.
func (m *Metrics) SessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
