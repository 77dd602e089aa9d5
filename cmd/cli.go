// SPDX-License-Identifier: MIT

// Package cmd is the readcheck command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"readcheck/internal/audio"
	"readcheck/internal/batch"
	"readcheck/internal/config"
	"readcheck/internal/log"
	"readcheck/internal/phonetic"
	"readcheck/pkg/build"
)

// globalOptions are the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	verbose    bool

	cfg *config.Config
}

// load reads the config and applies the logging flags.
func (g *globalOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		return fmt.Errorf("%w: unknown log level %q", config.ErrInvalid, cfg.Log.Level)
	}
	log.Configure(cfg.Log.Format, os.Stderr)
	log.SetLevel(level)
	if cfg.Source != "" {
		log.Debugf("config: loaded %s", cfg.Source)
	}
	g.cfg = cfg
	return nil
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	info := build.Get()
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "",
		"Config file. Defaults to the first of readcheck.yaml, config.yaml, ~/.config/readcheck/config.yaml")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false,
		"Shorthand for --log-level debug")

	rootCmd.AddCommand(
		newScoreCommand(g),
		newMatchCommand(),
		newExtractCommand(g),
		newReadCommand(g),
		newDevicesCommand(),
	)
	return rootCmd
}

// Execute runs the command line with args until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScoreCommand(g *globalOptions) *cobra.Command {
	var word, heard string
	cmd := &cobra.Command{
		Use:   "score <file.wav>",
		Short: "Score one recording of a word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clip, err := audio.ReadWAV(args[0], int(g.cfg.Audio.SampleRate))
			if err != nil {
				return err
			}
			log.Debugf("score: %s, %.2fs", args[0], clip.Duration())

			res, err := newResources(g.cfg, nil, false)
			if err != nil {
				return err
			}
			defer res.Close()

			d := res.pipeline.Decide(cmd.Context(), phonetic.Normalize(word), heard, clip.Samples)
			return writeJSON(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVarP(&word, "word", "w", "", "Expected word")
	cmd.Flags().StringVar(&heard, "heard", "", "Recognized text, enables the phonetic fallback and overrides")
	cmd.MarkFlagRequired("word")
	return cmd
}

func newMatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "match <spoken> <expected>",
		Short: "Compare a spoken word with the expected word phonetically",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), phonetic.New().Match(args[0], args[1]))
		},
	}
}

func newExtractCommand(g *globalOptions) *cobra.Command {
	var output string
	var workers int
	cmd := &cobra.Command{
		Use:   "extract <dir>",
		Short: "Extract features from labelled WAV files into a CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			opts := batch.OptionsFrom(g.cfg)
			opts.Workers = workers
			st, err := batch.Run(cmd.Context(), args[0], f, opts)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s (%d skipped)\n", st.Processed, output, st.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", batch.DefaultOutput, "Output CSV file")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers, 0 for one per CPU")
	return cmd
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
}
