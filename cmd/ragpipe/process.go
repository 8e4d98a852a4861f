package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookRa/ragpipe/internal/api"
	"github.com/bookRa/ragpipe/internal/batch"
	"github.com/bookRa/ragpipe/internal/svcctx"
)

var (
	processStrategy string
	processProvider string
	processQuiet    bool
)

var processCmd = &cobra.Command{
	Use:   "process <files...>",
	Short: "Convert documents into retrieval-ready chunks",
	Long: `Submit a batch of documents and stream progress until it finishes.

Each file runs through ingestion, parsing, cleaning, chunking, enrichment,
and vectorization. Per-document failures do not abort the batch unless
--strategy fail_all is set.

Examples:
  ragpipe process report.pdf
  ragpipe process *.pdf --strategy fail_all
  ragpipe process notes.md readme.txt --provider mock`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		strategy, err := batch.ParseErrorStrategy(processStrategy)
		if err != nil {
			return err
		}

		svc, err := buildServices(processProvider)
		if err != nil {
			return err
		}
		ctx = svcctx.WithServices(ctx, svc)

		inputs := make([]batch.Input, len(args))
		for i, path := range args {
			inputs[i] = batch.Input{Path: path}
		}

		b, err := svc.Coordinator.Start(ctx, inputs, strategy)
		if err != nil {
			return err
		}
		if !processQuiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "batch %s submitted with %d documents\n", b.ID, b.TotalDocuments)
		}

		watcher := batch.NewWatcher(svc.BatchStore, b.ID, 200*time.Millisecond)
		for ev := range watcher.Watch(ctx) {
			if processQuiet {
				continue
			}
			switch ev.Type {
			case batch.EventDocumentStageUpdate:
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", ev.Filename, ev.Stage)
			case batch.EventDocumentCompleted:
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: completed\n", ev.Filename)
			case batch.EventDocumentFailed:
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: failed (%s)\n", ev.Filename, ev.Error)
			}
		}

		// The watcher closed: the batch finished or the context was
		// cancelled. Wait for in-flight documents to persist either way.
		shutdownCtx := ctx
		if ctx.Err() != nil {
			var cancel context.CancelFunc
			shutdownCtx, cancel = watcherShutdownContext()
			defer cancel()
		}
		if err := svc.Coordinator.Supervisor().Shutdown(shutdownCtx); err != nil {
			return err
		}

		final, err := svc.Coordinator.GetBatch(b.ID)
		if err != nil {
			return err
		}
		return api.Output(batchSummary(final))
	},
}

func init() {
	processCmd.Flags().StringVar(&processStrategy, "strategy", "continue", "error strategy: continue or fail_all")
	processCmd.Flags().StringVar(&processProvider, "provider", "", "provider name (default: first enabled)")
	processCmd.Flags().BoolVarP(&processQuiet, "quiet", "q", false, "suppress progress output")

	rootCmd.AddCommand(processCmd)
}
