// SPDX-License-Identifier: MIT

// Package config loads the readcheck configuration: built-in defaults,
// then an optional YAML file, then ENV_* overrides, then validation.
package config

import (
	"time"

	"readcheck/internal/analysis"
	"readcheck/internal/dsp"
	"readcheck/internal/watchdog"
)

// Defaults for every section.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultDeviceID        = -1 // system default input
	DefaultSampleRate      = 16000
	DefaultFramesPerBuffer = 4096
	DefaultOutputDir       = "./recordings"

	DefaultDenoiseMode = "full"
	DefaultWindow      = "hamming"
	DefaultStatsLayout = "mean-delta-delta"

	DefaultOracleKind       = OracleNone
	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 30 * time.Second

	DefaultUDPInterval = 50 * time.Millisecond

	// Hardware limits.
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 16384
)

// Oracle kinds.
const (
	OracleNone     = "none"
	OracleLogistic = "logistic"
)

// Config is the whole application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Audio     AudioConfig     `yaml:"audio"`
	Denoise   DenoiseConfig   `yaml:"denoise"`
	Features  FeaturesConfig  `yaml:"features"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Overrides OverridesConfig `yaml:"overrides"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	Device          int     `yaml:"device"`            // PortAudio input index, -1 for default
	SampleRate      float64 `yaml:"sample_rate"`       // Hz
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // capture buffer size
	LowLatency      bool    `yaml:"low_latency"`
	Record          bool    `yaml:"record"`     // write the raw capture to a WAV file
	OutputDir       string  `yaml:"output_dir"` // where recordings go
}

// DenoiseConfig tunes noise suppression and gain.
type DenoiseConfig struct {
	Mode              string  `yaml:"mode"` // full or lightweight
	HighPassHz        float64 `yaml:"highpass_hz"`
	GateThreshold     float64 `yaml:"gate_threshold"`
	SubtractionFactor float64 `yaml:"subtraction_factor"`
	FloorRatio        float64 `yaml:"floor_ratio"`
	CalibrationFrames int     `yaml:"calibration_frames"`
	AGCTarget         float64 `yaml:"agc_target"`
	AGCMaxGain        float64 `yaml:"agc_max_gain"`
	SpeechRMS         float64 `yaml:"speech_rms"`
}

// FeaturesConfig is the MFCC geometry and aggregation layout.
type FeaturesConfig struct {
	FrameSize    int    `yaml:"frame_size"`
	Hop          int    `yaml:"hop"`
	Filters      int    `yaml:"filters"`
	Coefficients int    `yaml:"coefficients"`
	Window       string `yaml:"window"`
	StatsLayout  string `yaml:"stats_layout"` // mean-delta-delta or mean-std-delta
}

// WatchdogConfig bounds the wait for each word.
type WatchdogConfig struct {
	NormalTimeout  time.Duration `yaml:"normal_timeout"`
	ComplexTimeout time.Duration `yaml:"complex_timeout"`
	ComplexLength  int           `yaml:"complex_length"`
}

// OverridesConfig extends or replaces the built-in override table.
type OverridesConfig struct {
	Extra       map[string]string `yaml:"extra"` // spoken form -> expected word
	File        string            `yaml:"file"`  // YAML map merged after Extra
	DisableSeed bool              `yaml:"disable_seed"`
}

// OracleConfig selects the scoring oracle.
type OracleConfig struct {
	Kind             string        `yaml:"kind"`  // none or logistic
	Model            string        `yaml:"model"` // model file for logistic
	Normalize        bool          `yaml:"normalize"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
	FeatureLog       string        `yaml:"feature_log"`   // CSV path, empty disables
	FeatureLabel     int           `yaml:"feature_label"` // 0 or 1, written with each row
}

// SegmenterConfig cuts live capture into utterances.
type SegmenterConfig struct {
	RMSThreshold float64 `yaml:"rms_threshold"`
	HoldFrames   int     `yaml:"hold_frames"`
	MinSamples   int     `yaml:"min_samples"`
	MaxSamples   int     `yaml:"max_samples"`
}

// TransportConfig holds the optional outbound channels.
type TransportConfig struct {
	WebSocketAddr string        `yaml:"websocket_addr"` // listen address for /ws, empty disables
	UDPAddr       string        `yaml:"udp_addr"`       // level packet target, empty disables
	UDPInterval   time.Duration `yaml:"udp_interval"`
}

// MetricsConfig holds the Prometheus scrape endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

// Default returns the built-in configuration.
func Default() *Config {
	feat := analysis.StandardConfig()
	return &Config{
		Log: LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Audio: AudioConfig{
			Device:          DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			OutputDir:       DefaultOutputDir,
		},
		Denoise: DenoiseConfig{
			Mode:              DefaultDenoiseMode,
			HighPassHz:        dsp.DefaultHighPassHz,
			GateThreshold:     dsp.DefaultGateThreshold,
			SubtractionFactor: dsp.DefaultSubtraction,
			FloorRatio:        dsp.DefaultFloorRatio,
			CalibrationFrames: dsp.DefaultCalibrationFrames,
			AGCTarget:         dsp.DefaultAGCTarget,
			AGCMaxGain:        dsp.DefaultAGCMaxGain,
			SpeechRMS:         dsp.DefaultSpeechRMS,
		},
		Features: FeaturesConfig{
			FrameSize:    feat.FrameSize,
			Hop:          feat.Hop,
			Filters:      feat.Filters,
			Coefficients: feat.Coefficients,
			Window:       DefaultWindow,
			StatsLayout:  DefaultStatsLayout,
		},
		Watchdog: WatchdogConfig{
			NormalTimeout:  watchdog.DefaultNormalTimeout,
			ComplexTimeout: watchdog.DefaultComplexTimeout,
			ComplexLength:  watchdog.DefaultComplexLength,
		},
		Oracle: OracleConfig{
			Kind:             DefaultOracleKind,
			BreakerThreshold: DefaultBreakerThreshold,
			BreakerReset:     DefaultBreakerReset,
			FeatureLabel:     1,
		},
		Segmenter: SegmenterConfig{
			RMSThreshold: dsp.DefaultSegmentRMS,
			HoldFrames:   dsp.DefaultSegmentHold,
			MinSamples:   dsp.DefaultMinSamples,
			MaxSamples:   dsp.DefaultMaxSamples,
		},
		Transport: TransportConfig{UDPInterval: DefaultUDPInterval},
	}
}

// DenoiserConfig converts the denoise section.
func (c *Config) DenoiserConfig() dsp.DenoiseConfig {
	return dsp.DenoiseConfig{
		SampleRate:        c.Audio.SampleRate,
		HighPassHz:        c.Denoise.HighPassHz,
		GateThreshold:     c.Denoise.GateThreshold,
		Subtraction:       c.Denoise.SubtractionFactor,
		FloorRatio:        c.Denoise.FloorRatio,
		CalibrationFrames: c.Denoise.CalibrationFrames,
		SpeechRMS:         c.Denoise.SpeechRMS,
	}
}

// DenoiseMode parses the denoise mode. Validate has already rejected
// unknown names.
func (c *Config) DenoiseMode() dsp.Mode {
	m, _ := dsp.ParseMode(c.Denoise.Mode)
	return m
}

// ExtractorConfig converts the features section.
func (c *Config) ExtractorConfig() analysis.Config {
	w, _ := analysis.ParseWindowFunc(c.Features.Window)
	return analysis.Config{
		SampleRate:   c.Audio.SampleRate,
		FrameSize:    c.Features.FrameSize,
		Hop:          c.Features.Hop,
		Filters:      c.Features.Filters,
		Coefficients: c.Features.Coefficients,
		Window:       w,
	}
}

// Layout parses the aggregation layout.
func (c *Config) Layout() analysis.Layout {
	l, _ := analysis.ParseLayout(c.Features.StatsLayout)
	return l
}

// SegmenterSettings converts the segmenter section.
func (c *Config) SegmenterSettings() dsp.SegmenterConfig {
	return dsp.SegmenterConfig{
		RMSThreshold: c.Segmenter.RMSThreshold,
		HoldFrames:   c.Segmenter.HoldFrames,
		MinSamples:   c.Segmenter.MinSamples,
		MaxSamples:   c.Segmenter.MaxSamples,
	}
}

// WatchdogOptions converts the watchdog section.
func (c *Config) WatchdogOptions() []watchdog.Option {
	return []watchdog.Option{
		watchdog.WithTimeouts(c.Watchdog.NormalTimeout, c.Watchdog.ComplexTimeout),
		watchdog.WithComplexLength(c.Watchdog.ComplexLength),
	}
}
