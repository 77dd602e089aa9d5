// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"readcheck/internal/analysis"
	"readcheck/internal/dsp"
	"readcheck/internal/log"
	"readcheck/pkg/bitint"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Candidates lists the files searched, in order, when no path is given.
func Candidates() []string {
	c := []string{"readcheck.yaml", "config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		c = append(c, filepath.Join(home, ".config", "readcheck", "config.yaml"))
	}
	return c
}

// LoadConfig loads configuration from path. With an empty path it uses the
// first existing file from Candidates, or the built-in defaults when none
// exists. Environment overrides are applied after the file and the result
// is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range Candidates() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Source = path
	log.Debugf("configuration: loaded %s", path)
	return nil
}

// envOverride binds one ENV_* variable to a field.
type envOverride struct {
	name  string
	apply func(c *Config, val string) error
}

func setString(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func setDuration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

func setInt(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func setBool(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

var envOverrides = []envOverride{
	{"ENV_LOG_LEVEL", setString(func(c *Config) *string { return &c.Log.Level })},
	{"ENV_LOG_FORMAT", setString(func(c *Config) *string { return &c.Log.Format })},
	{"ENV_AUDIO_DEVICE", setInt(func(c *Config) *int { return &c.Audio.Device })},
	{"ENV_AUDIO_RECORD", setBool(func(c *Config) *bool { return &c.Audio.Record })},
	{"ENV_DENOISE_MODE", setString(func(c *Config) *string { return &c.Denoise.Mode })},
	{"ENV_ORACLE_KIND", setString(func(c *Config) *string { return &c.Oracle.Kind })},
	{"ENV_ORACLE_MODEL", setString(func(c *Config) *string { return &c.Oracle.Model })},
	{"ENV_WATCHDOG_NORMAL_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Watchdog.NormalTimeout })},
	{"ENV_WATCHDOG_COMPLEX_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Watchdog.ComplexTimeout })},
	{"ENV_WS_ADDR", setString(func(c *Config) *string { return &c.Transport.WebSocketAddr })},
	{"ENV_UDP_ADDR", setString(func(c *Config) *string { return &c.Transport.UDPAddr })},
	{"ENV_UDP_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.Transport.UDPInterval })},
	{"ENV_METRICS_ADDR", setString(func(c *Config) *string { return &c.Metrics.Addr })},
}

// applyEnvOverrides applies every set ENV_* variable. Values that do not
// parse are logged and ignored.
func (c *Config) applyEnvOverrides() {
	for _, o := range envOverrides {
		val, ok := os.LookupEnv(o.name)
		if !ok {
			continue
		}
		if err := o.apply(c, val); err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", o.name, val, err)
			continue
		}
		log.Infof("configuration: overriding from %s: %s", o.name, val)
	}
}

// Validate reports every problem at once. Each error wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		bad("log.level %q is not a known level", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		bad("log.format %q must be text or json", c.Log.Format)
	}

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		bad("audio.sample_rate %v outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		bad("audio.frames_per_buffer %d outside (0, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}

	if _, err := dsp.ParseMode(c.Denoise.Mode); err != nil {
		bad("denoise.mode: %v", err)
	}
	if c.Denoise.HighPassHz <= 0 || c.Denoise.HighPassHz >= c.Audio.SampleRate/2 {
		bad("denoise.highpass_hz %v must be in (0, nyquist)", c.Denoise.HighPassHz)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"denoise.gate_threshold", c.Denoise.GateThreshold},
		{"denoise.floor_ratio", c.Denoise.FloorRatio},
		{"denoise.speech_rms", c.Denoise.SpeechRMS},
	} {
		if f.v < 0 || f.v > 1 {
			bad("%s %v outside [0, 1]", f.name, f.v)
		}
	}
	if c.Denoise.SubtractionFactor < 0 {
		bad("denoise.subtraction_factor %v is negative", c.Denoise.SubtractionFactor)
	}
	if c.Denoise.CalibrationFrames <= 0 {
		bad("denoise.calibration_frames %d must be positive", c.Denoise.CalibrationFrames)
	}
	if c.Denoise.AGCTarget <= 0 || c.Denoise.AGCTarget > 1 {
		bad("denoise.agc_target %v outside (0, 1]", c.Denoise.AGCTarget)
	}
	if c.Denoise.AGCMaxGain < 1 {
		bad("denoise.agc_max_gain %v below 1", c.Denoise.AGCMaxGain)
	}

	if !bitint.IsPowerOfTwo(c.Features.FrameSize) {
		bad("features.frame_size %d is not a power of two", c.Features.FrameSize)
	}
	if c.Features.Hop <= 0 {
		bad("features.hop %d must be positive", c.Features.Hop)
	}
	if c.Features.Filters <= 0 {
		bad("features.filters %d must be positive", c.Features.Filters)
	}
	if c.Features.Coefficients <= 0 || c.Features.Coefficients > c.Features.Filters {
		bad("features.coefficients %d must be in (0, filters]", c.Features.Coefficients)
	}
	if _, err := analysis.ParseWindowFunc(c.Features.Window); err != nil {
		bad("features.window: %v", err)
	}
	if _, err := analysis.ParseLayout(c.Features.StatsLayout); err != nil {
		bad("features.stats_layout: %v", err)
	}

	if c.Watchdog.NormalTimeout <= 0 {
		bad("watchdog.normal_timeout %s must be positive", c.Watchdog.NormalTimeout)
	}
	if c.Watchdog.ComplexTimeout <= 0 {
		bad("watchdog.complex_timeout %s must be positive", c.Watchdog.ComplexTimeout)
	}
	if c.Watchdog.ComplexLength <= 0 {
		bad("watchdog.complex_length %d must be positive", c.Watchdog.ComplexLength)
	}

	switch c.Oracle.Kind {
	case OracleNone:
	case OracleLogistic:
		if c.Oracle.Model == "" {
			bad("oracle.model is required for the logistic oracle")
		}
	default:
		bad("oracle.kind %q must be %s or %s", c.Oracle.Kind, OracleNone, OracleLogistic)
	}
	if c.Oracle.BreakerThreshold <= 0 {
		bad("oracle.breaker_threshold %d must be positive", c.Oracle.BreakerThreshold)
	}
	if c.Oracle.BreakerReset <= 0 {
		bad("oracle.breaker_reset %s must be positive", c.Oracle.BreakerReset)
	}
	if c.Oracle.FeatureLabel != 0 && c.Oracle.FeatureLabel != 1 {
		bad("oracle.feature_label %d must be 0 or 1", c.Oracle.FeatureLabel)
	}

	if c.Segmenter.RMSThreshold <= 0 {
		bad("segmenter.rms_threshold %v must be positive", c.Segmenter.RMSThreshold)
	}
	if c.Segmenter.HoldFrames <= 0 {
		bad("segmenter.hold_frames %d must be positive", c.Segmenter.HoldFrames)
	}
	if c.Segmenter.MinSamples < 0 || c.Segmenter.MaxSamples <= c.Segmenter.MinSamples {
		bad("segmenter.min_samples %d / max_samples %d out of order", c.Segmenter.MinSamples, c.Segmenter.MaxSamples)
	}

	if c.Transport.UDPAddr != "" && c.Transport.UDPInterval <= 0 {
		bad("transport.udp_interval %s must be positive", c.Transport.UDPInterval)
	}

	return errors.Join(errs...)
}
