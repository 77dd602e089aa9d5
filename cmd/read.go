// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"readcheck/internal/audio"
	"readcheck/internal/config"
	"readcheck/internal/dsp"
	"readcheck/internal/log"
	"readcheck/internal/observe"
	"readcheck/internal/session"
	"readcheck/internal/transport"
	"readcheck/internal/transport/udp"
	"readcheck/internal/tui"
	"readcheck/pkg/build"
)

// readOptions are the flags of the read command.
type readOptions struct {
	text       string
	passage    string
	input      string
	fast       bool
	useTUI     bool
	pickDevice bool
}

func newReadCommand(g *globalOptions) *cobra.Command {
	o := &readOptions{}
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Run a live reading session over the microphone or a WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyReadFlags(cmd, g.cfg)
			return runRead(cmd.Context(), g.cfg, o, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.text, "text", "t", "", "Passage text")
	f.StringVarP(&o.passage, "passage", "p", "", "File holding the passage text")
	f.StringVarP(&o.input, "input", "i", "", "Replay a WAV file instead of capturing")
	f.BoolVar(&o.fast, "fast", false, "Replay --input as fast as possible")
	f.BoolVar(&o.useTUI, "tui", false, "Show the live passage view")
	f.BoolVar(&o.pickDevice, "pick-device", false, "Choose the input device interactively")
	f.IntP("device", "d", config.DefaultDeviceID, "Input device ID, see 'devices'")
	f.BoolP("record", "r", false, "Record the raw capture to the output directory")
	f.String("ws-addr", "", "Serve word results over websocket on this address (/ws)")
	f.String("udp-addr", "", "Send input level packets to this UDP address")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (/metrics)")
	cmd.MarkFlagsMutuallyExclusive("text", "passage")
	cmd.MarkFlagsOneRequired("text", "passage")
	return cmd
}

// applyReadFlags copies explicitly set flags over the loaded config.
func applyReadFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("device") {
		cfg.Audio.Device, _ = f.GetInt("device")
	}
	if f.Changed("record") {
		cfg.Audio.Record, _ = f.GetBool("record")
	}
	if f.Changed("ws-addr") {
		cfg.Transport.WebSocketAddr, _ = f.GetString("ws-addr")
	}
	if f.Changed("udp-addr") {
		cfg.Transport.UDPAddr, _ = f.GetString("udp-addr")
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = f.GetString("metrics-addr")
	}
}

func (o *readOptions) words() ([]string, error) {
	text := o.text
	if o.passage != "" {
		b, err := os.ReadFile(o.passage)
		if err != nil {
			return nil, fmt.Errorf("read passage: %w", err)
		}
		text = string(b)
	}
	return strings.Fields(text), nil
}

func runRead(ctx context.Context, cfg *config.Config, o *readOptions, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	words, err := o.words()
	if err != nil {
		return err
	}

	var metrics *observe.Metrics
	if cfg.Metrics.Addr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: build.Get().Version})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer shutdown(context.Background())
		metrics = observe.DefaultMetrics()
		go func() {
			if err := observe.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	res, err := newResources(cfg, metrics, true)
	if err != nil {
		return err
	}
	defer res.Close()

	sinks := transport.Multi{transport.NewLoggingTransport()}
	if cfg.Transport.WebSocketAddr != "" {
		sinks = append(sinks, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr))
	}
	defer sinks.Close()

	meter := &dsp.Meter{}
	if cfg.Transport.UDPAddr != "" {
		sender, err := udp.NewSender(cfg.Transport.UDPAddr)
		if err != nil {
			return err
		}
		pub, err := udp.NewPublisher(cfg.Transport.UDPInterval, sender, meter)
		if err != nil {
			sender.Close()
			return err
		}
		pub.Start()
		defer pub.Close()
	}

	sess := session.NewSession(words, res.pipeline,
		session.WithWatchdog(cfg.WatchdogOptions()...),
		session.WithTransport(sinks),
		session.WithMetrics(metrics),
	)

	src, err := openSource(cfg, o)
	if err != nil {
		return err
	}
	defer src.Close()

	bufs, err := src.Start(ctx)
	if err != nil {
		return err
	}

	cond := dsp.NewConditioner(res.scorer.Denoiser(), dsp.NewAGC(cfg.Denoise.AGCTarget, cfg.Denoise.AGCMaxGain))
	feed := &feeder{
		session:   sess,
		cond:      cond,
		segmenter: dsp.NewSegmenter(cfg.SegmenterSettings()),
		meter:     meter,
	}
	sess.Start(ctx)
	go feed.run(ctx, bufs)

	if o.useTUI {
		err = tui.RunReading(sess, meter)
		sess.Stop()
	} else {
		err = printResults(ctx, sess, out)
	}

	sum := sess.Summary()
	fmt.Fprintf(out, "\n%d/%d words correct, %d incorrect, %d skipped (accuracy %.0f%%)\n",
		sum.Correct, sum.Words, sum.Incorrect, sum.Skipped, sum.Accuracy*100)
	return err
}

// openSource returns the replay or capture source for o.
func openSource(cfg *config.Config, o *readOptions) (audio.Source, error) {
	if o.input != "" {
		clip, err := audio.ReadWAV(o.input, int(cfg.Audio.SampleRate))
		if err != nil {
			return nil, err
		}
		log.Infof("read: replaying %s (%.1fs)", o.input, clip.Duration())
		src := audio.NewFileSource(clip.Samples, clip.SampleRate, cfg.Audio.FramesPerBuffer)
		src.Realtime = !o.fast
		return src, nil
	}

	if err := audio.Initialize(); err != nil {
		return nil, err
	}
	if o.pickDevice {
		id, err := tui.PickDevice()
		if err != nil {
			audio.Terminate()
			return nil, err
		}
		cfg.Audio.Device = id
	}
	engine, err := audio.NewEngine(cfg)
	if err != nil {
		audio.Terminate()
		return nil, err
	}
	if cfg.Audio.Record {
		if err := engine.StartRecording(audio.RecordingName(cfg.Audio.OutputDir, time.Now())); err != nil {
			audio.Terminate()
			return nil, err
		}
	}
	return &capture{Engine: engine}, nil
}

// capture shuts PortAudio down with the engine.
type capture struct {
	*audio.Engine
}

func (c *capture) Close() error {
	return errors.Join(c.Engine.Close(), audio.Terminate())
}

// printResults writes each decided word to out until the session ends.
func printResults(ctx context.Context, sess *session.Session, out io.Writer) error {
	for {
		select {
		case r, ok := <-sess.Updates():
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%3d  %-16s %-9s %-8s %.2f\n", r.Index+1, r.Word, r.Outcome, r.Source, r.Verdict.Correct)
		case <-ctx.Done():
			sess.Stop()
			return ctx.Err()
		}
	}
}

// feeder moves capture buffers through conditioning and segmentation and
// submits each utterance as an attempt at the current word.
type feeder struct {
	session   *session.Session
	cond      *dsp.Conditioner
	segmenter *dsp.Segmenter
	meter     *dsp.Meter
}

func (f *feeder) run(ctx context.Context, bufs <-chan []int16) {
	utterances := make(chan []int16, 4)
	go func() {
		defer close(utterances)
		for buf := range bufs {
			f.meter.Observe(buf)
			x, ok := f.cond.Process(buf)
			if !ok {
				continue
			}
			if utt, ok := f.segmenter.Push(x); ok {
				f.queue(utterances, utt)
			}
		}
		if utt, ok := f.segmenter.Flush(); ok {
			f.queue(utterances, utt)
		}
	}()

	for utt := range utterances {
		f.submit(ctx, utt)
	}
	log.Infof("read: audio source finished")
	f.session.Stop()
}

// queue drops the utterance when scoring is too far behind.
func (f *feeder) queue(ch chan<- []int16, utt []int16) {
	select {
	case ch <- utt:
	default:
		log.Warnf("read: scoring behind, dropped %d-sample utterance", len(utt))
	}
}

func (f *feeder) submit(ctx context.Context, utt []int16) {
	idx, word, ok := f.session.Current()
	if !ok {
		return
	}
	f.meter.SetWord(idx)
	r, err := f.session.Submit(ctx, session.Attempt{Index: idx, Samples: utt})
	switch {
	case errors.Is(err, session.ErrStaleAttempt), errors.Is(err, session.ErrSessionComplete):
		log.Debugf("read: attempt at %q discarded: %v", word, err)
	case err != nil:
		log.Warnf("read: attempt at %q: %v", word, err)
	default:
		log.Debugf("read: %q -> %s via %s", word, r.Outcome, r.Source)
	}
}
