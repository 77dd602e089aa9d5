// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"readcheck/internal/log"
)

// ErrAlreadyRecording is returned by StartRecording while a recording is open.
var ErrAlreadyRecording = errors.New("already recording")

// recorder streams 16-bit mono PCM into a WAV file.
type recorder struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	frames  int
}

func newRecorder(filename string, sampleRate, framesPerBuffer int) (*recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &recorder{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, 16, 1, wavPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, framesPerBuffer),
			SourceBitDepth: 16,
		},
	}, nil
}

func (r *recorder) write(samples []int16) error {
	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		r.buf.Data[i] = int(s)
	}
	r.frames += len(samples)
	return r.encoder.Write(r.buf)
}

func (r *recorder) close() error {
	err := r.encoder.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// RecordingName returns a timestamped WAV path inside dir.
func RecordingName(dir string, t time.Time) string {
	return filepath.Join(dir, "reading-"+t.Format("20060102-150405")+".wav")
}

// StartRecording writes the raw capture to filename until StopRecording.
func (e *Engine) StartRecording(filename string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder != nil {
		return ErrAlreadyRecording
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create recording dir: %w", err)
		}
	}
	r, err := newRecorder(filename, int(e.config.Audio.SampleRate), e.config.Audio.FramesPerBuffer)
	if err != nil {
		return err
	}
	e.recorder = r
	e.recording.Store(true)
	log.Infof("audio: recording to %s", filename)
	return nil
}

// writeRecording runs on the audio thread.
func (e *Engine) writeRecording(samples []int16) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder == nil {
		return
	}
	if err := e.recorder.write(samples); err != nil {
		log.Errorf("audio: writing recording: %v", err)
	}
}

// StopRecording finishes the WAV file. It is a no-op when not recording.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder == nil {
		return nil
	}
	e.recording.Store(false)
	r := e.recorder
	e.recorder = nil
	log.Infof("audio: recording stopped after %d samples", r.frames)
	return r.close()
}

// Recording reports whether a recording is open.
func (e *Engine) Recording() bool {
	return e.recording.Load()
}
