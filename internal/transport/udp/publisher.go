// SPDX-License-Identifier: MIT

// Package udp streams capture level snapshots to a visualiser over UDP.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"readcheck/internal/dsp"
	"readcheck/internal/log"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 50 * time.Millisecond

// PacketSize is the encoded size of a Packet.
const PacketSize = 4 + 8 + 4 + 1 + 4

// Source reports the current capture level and word index.
type Source interface {
	Level() (rms float64, word int)
}

// PacketSender transmits one encoded packet.
type PacketSender interface {
	Send(data []byte) error
}

/*
Packet layout (BigEndian, 21 bytes):

	| seq uint32 | timestamp int64 (ns) | rms float32 | level uint8 | word int32 |
*/

// Packet is one level snapshot.
type Packet struct {
	Seq       uint32
	Timestamp int64
	RMS       float32
	Level     uint8
	Word      int32
}

// MarshalBinary encodes p in the wire layout.
func (p Packet) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(PacketSize)
	if err := binary.Write(&buf, binary.BigEndian, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a packet produced by MarshalBinary.
func (p *Packet) UnmarshalBinary(data []byte) error {
	if len(data) != PacketSize {
		return fmt.Errorf("udp packet is %d bytes, want %d", len(data), PacketSize)
	}
	return binary.Read(bytes.NewReader(data), binary.BigEndian, p)
}

// Publisher samples a Source every interval and sends a Packet.
type Publisher struct {
	sender   PacketSender
	source   Source
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	seq    uint32
	packet bytes.Buffer
}

// NewPublisher builds a stopped publisher.
func NewPublisher(interval time.Duration, sender PacketSender, source Source) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp publisher: source cannot be nil")
	}
	if interval <= 0 {
		log.Warnf("udp publisher: invalid interval %s, using %s", interval, DefaultInterval)
		interval = DefaultInterval
	}
	return &Publisher{sender: sender, source: source, interval: interval, now: time.Now}, nil
}

// Start launches the publishing goroutine. Calling it while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		log.Warnf("udp publisher: already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	ticker, done := p.ticker, p.done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("udp publisher: started, interval %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop ends the goroutine and waits for it. Calling it while stopped is a
// no-op.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.ticker.Stop()
	close(p.done)
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("udp publisher: stopped after %d packets", p.seq)
	return nil
}

// publish builds and sends one packet. It runs on the publisher goroutine.
func (p *Publisher) publish() {
	rms, word := p.source.Level()
	p.seq++
	pkt := Packet{
		Seq:       p.seq,
		Timestamp: p.now().UnixNano(),
		RMS:       float32(rms),
		Level:     uint8(dsp.Classify(rms)),
		Word:      int32(word),
	}

	p.packet.Reset()
	if err := binary.Write(&p.packet, binary.BigEndian, pkt); err != nil {
		log.Errorf("udp publisher: encode packet: %v", err)
		return
	}
	if err := p.sender.Send(p.packet.Bytes()); err != nil {
		log.Debugf("udp publisher: packet %d: %v", p.seq, err)
	}
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ io.Closer = (*Publisher)(nil)
