// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"readcheck/internal/log"
	"readcheck/pkg/pcm"
)

// SampleRate is the pipeline rate every source is converted to.
const SampleRate = 16000

// wavPCM is the WAVE format tag for integer PCM.
const wavPCM = 1

// ErrUnsupportedFormat is returned for files that are not integer PCM WAV.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Clip is decoded mono audio.
type Clip struct {
	Samples    []int16
	SampleRate int
	// Source format before conversion.
	Channels int
	BitDepth int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// ReadWAV decodes path into mono 16-bit samples at rate. Multi-channel
// audio is averaged, other bit depths are rescaled and other sample rates
// are linearly resampled.
func ReadWAV(path string, rate int) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Clip{}, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedFormat, path)
	}
	if d.WavAudioFormat != wavPCM {
		return Clip{}, fmt.Errorf("%w: %s uses WAVE format %d, want PCM", ErrUnsupportedFormat, path, d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav %s: %w", path, err)
	}

	channels, depth, srcRate := int(d.NumChans), int(d.BitDepth), int(d.SampleRate)
	pcm.Rescale(buf.Data, depth)
	mono := pcm.Downmix(buf.Data, channels)
	if rate > 0 && srcRate != rate {
		log.Debugf("audio: resampling %s from %d Hz to %d Hz", path, srcRate, rate)
		mono = pcm.Resample(mono, srcRate, rate)
	} else {
		rate = srcRate
	}
	return Clip{Samples: mono, SampleRate: rate, Channels: channels, BitDepth: depth}, nil
}

// WriteWAV writes mono 16-bit samples to path.
func WriteWAV(path string, samples []int16, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, wavPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finish wav %s: %w", path, err)
	}
	return f.Close()
}
