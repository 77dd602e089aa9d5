// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"sync"
	"time"
)

// FileSource replays decoded samples as capture buffers. With Realtime set
// each buffer is paced to its duration.
type FileSource struct {
	samples         []int16
	sampleRate      int
	framesPerBuffer int
	Realtime        bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFileSource chunks samples into framesPerBuffer-sized buffers.
func NewFileSource(samples []int16, sampleRate, framesPerBuffer int) *FileSource {
	return &FileSource{
		samples:         samples,
		sampleRate:      sampleRate,
		framesPerBuffer: max(framesPerBuffer, 1),
		Realtime:        true,
	}
}

// Start begins replay. The channel closes after the last buffer.
func (s *FileSource) Start(ctx context.Context) (<-chan []int16, error) {
	ctx, s.cancel = context.WithCancel(ctx)
	out := make(chan []int16)
	interval := time.Duration(float64(s.framesPerBuffer) / float64(s.sampleRate) * float64(time.Second))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)

		var tick <-chan time.Time
		if s.Realtime {
			t := time.NewTicker(interval)
			defer t.Stop()
			tick = t.C
		}
		for start := 0; start < len(s.samples); start += s.framesPerBuffer {
			end := min(start+s.framesPerBuffer, len(s.samples))
			buf := append([]int16(nil), s.samples[start:end]...)
			if tick != nil {
				select {
				case <-tick:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- buf:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops replay and waits for the goroutine.
func (s *FileSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

var _ Source = (*FileSource)(nil)
