package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookRa/ragpipe/internal/api"
	"github.com/bookRa/ragpipe/internal/batch"
)

var batchesLimit int

// batchView is the CLI representation of a batch.
type batchView struct {
	ID            string         `json:"id" yaml:"id"`
	Status        batch.Status   `json:"status" yaml:"status"`
	ErrorStrategy string         `json:"error_strategy" yaml:"error_strategy"`
	Total         int            `json:"total_documents" yaml:"total_documents"`
	Completed     int            `json:"completed_documents" yaml:"completed_documents"`
	Failed        int            `json:"failed_documents" yaml:"failed_documents"`
	Progress      string         `json:"progress" yaml:"progress"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	Documents     []documentView `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// documentView is the CLI representation of one document job.
type documentView struct {
	DocumentID string       `json:"document_id" yaml:"document_id"`
	Filename   string       `json:"filename" yaml:"filename"`
	Status     batch.Status `json:"status" yaml:"status"`
	Stage      string       `json:"stage,omitempty" yaml:"stage,omitempty"`
	RunID      string       `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Error      string       `json:"error,omitempty" yaml:"error,omitempty"`
}

func batchSummary(b *batch.BatchJob) batchView {
	view := batchView{
		ID:            b.ID,
		Status:        b.Status,
		ErrorStrategy: string(b.ErrorStrategy),
		Total:         b.TotalDocuments,
		Completed:     b.CompletedDocuments,
		Failed:        b.FailedDocuments,
		Progress:      fmt.Sprintf("%.0f%%", b.ProgressPercentage()),
		CreatedAt:     b.CreatedAt,
	}
	for _, job := range b.DocumentJobs {
		view.Documents = append(view.Documents, documentView{
			DocumentID: job.DocumentID,
			Filename:   job.Filename,
			Status:     job.Status,
			Stage:      job.CurrentStage,
			RunID:      job.RunID,
			Error:      job.ErrorMessage,
		})
	}
	sort.Slice(view.Documents, func(i, j int) bool {
		return view.Documents[i].Filename < view.Documents[j].Filename
	})
	return view
}

// watcherShutdownContext bounds the post-cancellation wait for in-flight
// documents to persist their state.
func watcherShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect batch records",
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildReadServices()
		if err != nil {
			return err
		}

		batches, err := svc.BatchStore.ListRecent(batchesLimit)
		if err != nil {
			return err
		}

		views := make([]batchView, 0, len(batches))
		for _, b := range batches {
			v := batchSummary(b)
			v.Documents = nil // listing stays compact
			views = append(views, v)
		}
		return api.Output(views)
	},
}

var batchesGetCmd = &cobra.Command{
	Use:   "get <batch-id>",
	Short: "Show one batch with its document jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildReadServices()
		if err != nil {
			return err
		}

		b, err := svc.BatchStore.GetBatch(args[0])
		if err != nil {
			return err
		}
		return api.Output(batchSummary(b))
	},
}

func init() {
	batchesListCmd.Flags().IntVar(&batchesLimit, "limit", 20, "maximum batches to list")

	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesGetCmd)
	rootCmd.AddCommand(batchesCmd)
}
