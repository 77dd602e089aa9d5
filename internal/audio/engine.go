// SPDX-License-Identifier: MIT

/*
Package audio captures and decodes speech for the reading pipeline.

  - Engine captures mono 16-bit audio through PortAudio, optionally gates
    and band-limits it, and hands fixed-size buffers to a consumer
    goroutine. Buffers are dropped, never queued without bound, when the
    consumer falls behind.
  - FileSource replays a WAV file through the same interface.
  - ReadWAV and WriteWAV convert between WAV files and mono int16 PCM.

The PortAudio callback only copies, optionally filters, and hands off;
scoring never runs on the audio thread.
*/
package audio

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"readcheck/internal/config"
	"readcheck/internal/dsp"
	"readcheck/internal/log"
)

// bufferQueue is how many capture buffers may wait for the consumer.
const bufferQueue = 32

// Source delivers mono capture buffers at the pipeline sample rate. A
// received buffer stays valid until the next receive.
type Source interface {
	// Start begins delivery. The channel is closed when the source ends or
	// ctx is cancelled.
	Start(ctx context.Context) (<-chan []int16, error)
	Close() error
}

// Engine is a PortAudio microphone Source.
type Engine struct {
	config *config.Config

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Ring of capture buffers handed to the consumer in turn. It holds the
	// queue, the consumer's current buffer and the one being filled.
	ring    [][]int16
	next    int
	out     chan []int16
	dropped atomic.Uint64

	// Gate and band-limit applied on the audio thread.
	gateEnabled atomic.Bool
	pre         *dsp.PreProcessor

	// Recording state.
	recMu     sync.Mutex
	recording atomic.Bool
	recorder  *recorder

	closeOnce sync.Once
}

// NewEngine resolves the configured input device. PortAudio must be
// initialized.
func NewEngine(cfg *config.Config) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.Device)
	if err != nil {
		return nil, err
	}
	e := newEngine(cfg)
	e.inputDevice = inputDevice
	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}
	log.Infof("audio: input %q at %.0f Hz, %d frames per buffer", inputDevice.Name, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	return e, nil
}

// newEngine builds the device-independent part of an Engine.
func newEngine(cfg *config.Config) *Engine {
	e := &Engine{
		config: cfg,
		ring:   make([][]int16, bufferQueue+2),
		out:    make(chan []int16, bufferQueue),
		pre:    dsp.NewPreProcessor(cfg.Audio.SampleRate),
	}
	for i := range e.ring {
		e.ring[i] = make([]int16, cfg.Audio.FramesPerBuffer)
	}
	e.pre.GateThreshold = cfg.Denoise.SpeechRMS
	e.gateEnabled.Store(true)
	return e
}

// Start opens and starts the input stream.
func (e *Engine) Start(ctx context.Context) (<-chan []int16, error) {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}
	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	e.inputStream = stream

	go func() {
		<-ctx.Done()
		e.Close()
	}()
	return e.out, nil
}

// Dropped returns how many buffers were discarded because the consumer
// fell behind.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// processInputStream is the PortAudio callback. It uses only the
// pre-allocated ring.
func (e *Engine) processInputStream(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	slot := e.ring[e.next]
	buf := slot[:min(len(in), len(slot))]
	copy(buf, in)

	if e.recording.Load() {
		e.writeRecording(buf)
	}
	if e.gateEnabled.Load() {
		e.pre.Process(buf)
	}

	// A dropped buffer leaves its slot free for the next callback.
	select {
	case e.out <- buf:
		e.next = (e.next + 1) % len(e.ring)
	default:
		e.dropped.Add(1)
	}
}

// Close stops the stream, finishes any recording and closes the buffer
// channel.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.inputStream != nil {
			if serr := e.inputStream.Stop(); serr != nil {
				err = serr
			}
			if cerr := e.inputStream.Close(); cerr != nil && err == nil {
				err = cerr
			}
			e.inputStream = nil
		}
		if rerr := e.StopRecording(); rerr != nil && err == nil {
			err = rerr
		}
		close(e.out)
		if n := e.Dropped(); n > 0 {
			log.Warnf("audio: dropped %d capture buffers", n)
		}
	})
	return err
}

var _ Source = (*Engine)(nil)
