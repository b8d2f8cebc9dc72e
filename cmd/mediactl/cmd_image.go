package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/imageproc"
)

func newEncodeCommand(a *app) *cobra.Command {
	var presetName string

	cmd := &cobra.Command{
		Use:   "encode <input> <output>",
		Short: "Encode a local image with a derivative preset",
		Long: `Encode a local image with one of the built-in presets (thumbnail,
web-optimized, avatar) and print the chosen format, quality and size.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, ok := imageproc.PresetByName(presetName)
			if !ok {
				return fmt.Errorf("unknown preset %q", presetName)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			info, err := imageproc.Probe(data)
			if err != nil {
				return err
			}
			if err := imageproc.CheckPixelLimit(info, a.cfg.Pipeline.MaxPixels); err != nil {
				return err
			}
			img, err := imageproc.Decode(data)
			if err != nil {
				return err
			}

			res, err := imageproc.NewEncoder().Encode(img, preset)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], res.Data, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "preset:   %s (%s)\n", preset.Name, preset.Fit)
			fmt.Fprintf(out, "source:   %dx%d %s\n", info.Width, info.Height, info.Format)
			fmt.Fprintf(out, "output:   %dx%d %s\n", res.Width, res.Height, res.Format.MIME)
			fmt.Fprintf(out, "quality:  %d after %d attempt(s)\n", res.Quality, res.Attempts)
			fmt.Fprintf(out, "size:     %d bytes (budget %d)\n", res.Size(), preset.BudgetBytes)
			if res.FallbackReason != "" {
				fmt.Fprintf(out, "fallback: %s\n", res.FallbackReason)
			}
			if !strings.HasSuffix(strings.ToLower(args[1]), "."+res.Format.Ext) {
				a.log.Warn("output extension does not match encoded format",
					zap.String("path", args[1]), zap.String("format", res.Format.Ext))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&presetName, "preset", imageproc.Thumbnail.Name, "preset name")
	return cmd
}

func newProbeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Print the sniffed type and image dimensions of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mime:   %s\n", mimetype.Detect(data).String())

			info, err := imageproc.Probe(data)
			if err != nil {
				fmt.Fprintf(out, "image:  not readable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "image:  %dx%d %s\n", info.Width, info.Height, info.Format)
			fmt.Fprintf(out, "pixels: %d\n", info.Pixels())
			if err := imageproc.CheckPixelLimit(info, a.cfg.Pipeline.MaxPixels); err != nil {
				fmt.Fprintf(out, "limit:  %v\n", err)
			}
			return nil
		},
	}
}
