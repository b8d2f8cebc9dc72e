package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abduss/tribute/internal/media"
	"github.com/abduss/tribute/internal/pipeline"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		public  bool
		process bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Ingest local files as media originals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			svc, err := a.service(b)
			if err != nil {
				return err
			}
			orch := a.orchestrator(b)

			out := cmd.OutOrStdout()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}

				m, err := svc.Ingest(ctx, filepath.Base(path), data, public)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%d bytes\n", m.ID, m.MimeType, m.Disk, m.SizeBytes)

				if !process {
					continue
				}
				report, err := orch.Process(ctx, m.ID)
				printReport(out, report)
				if err != nil {
					return fmt.Errorf("process %s: %w", m.ID, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "store originals on the public disk")
	cmd.Flags().BoolVar(&process, "process", false, "generate derivatives immediately")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List media, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			svc, err := a.service(b)
			if err != nil {
				return err
			}
			items, err := svc.List(ctx, limit, offset)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tSIZE\tNAME")
			for _, m := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Status, m.MimeType, m.SizeBytes, m.OriginalFilename)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newProcessCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "process <media-id>",
		Short: "Run the derivative pipeline for one media item in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid media id %q", args[0])
			}

			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			report, err := a.orchestrator(b).Process(ctx, id)
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func newReprocessCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <media-id>",
		Short: "Reset a media item to pending and queue a derivative job",
		Long: `Reset a media item to pending and queue a derivative job for the workers.
In --sqlite mode there are no workers, so the job runs immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid media id %q", args[0])
			}

			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			svc, err := a.service(b)
			if err != nil {
				return err
			}
			m, err := svc.Reprocess(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !b.inline {
				fmt.Fprintf(out, "%s queued\n", m.ID)
				return nil
			}

			if _, err := a.drain(ctx, b); err != nil {
				return err
			}
			m, err = svc.Get(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", m.ID, m.Status)
			if m.Status == media.StatusError && m.ErrorMessage != nil {
				return fmt.Errorf("%s", *m.ErrorMessage)
			}
			return nil
		},
	}
}

func printReport(out io.Writer, r pipeline.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "media %s: %s\n", r.MediaID, statusOrUnknown(r.Status))
	for _, s := range r.Stages {
		if s.Err != nil {
			fmt.Fprintf(w, "  %s\tfailed\t%v\n", s.Type, s.Err)
			continue
		}
		d := s.Derivative
		dims := "-"
		if d.Width != nil && d.Height != nil {
			dims = fmt.Sprintf("%dx%d", *d.Width, *d.Height)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d bytes\t%s\n", s.Type, d.MimeType, dims, d.SizeBytes, d.StoragePath)
	}
	_ = w.Flush()
}

func statusOrUnknown(s media.Status) string {
	if s == "" {
		return "unchanged"
	}
	return string(s)
}
