package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bookRa/ragpipe/internal/api"
	"github.com/bookRa/ragpipe/internal/document"
	"github.com/bookRa/ragpipe/internal/runs"
)

var runsLimit int

// runView is the CLI representation of one pipeline run.
type runView struct {
	ID         string      `json:"id" yaml:"id"`
	DocumentID string      `json:"document_id" yaml:"document_id"`
	Filename   string      `json:"filename" yaml:"filename"`
	BatchID    string      `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	Status     runs.Status `json:"status" yaml:"status"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	Stages     []stageView `json:"stages,omitempty" yaml:"stages,omitempty"`
	Document   *docView    `json:"document,omitempty" yaml:"document,omitempty"`
}

// docView summarizes the document snapshot a run produced.
type docView struct {
	Status document.Status `json:"status" yaml:"status"`
	Pages  int             `json:"pages" yaml:"pages"`
	Chunks int             `json:"chunks" yaml:"chunks"`
}

// stageView is the CLI representation of one completed stage.
type stageView struct {
	Name     string `json:"name" yaml:"name"`
	Title    string `json:"title" yaml:"title"`
	Duration string `json:"duration" yaml:"duration"`
}

func runSummary(rec runs.Record, withStages bool) runView {
	view := runView{
		ID:         rec.ID,
		DocumentID: rec.DocumentID,
		Filename:   rec.Filename,
		BatchID:    rec.BatchID,
		Status:     rec.Status,
		StartedAt:  rec.StartedAt,
		Error:      rec.Error,
	}
	if withStages {
		for _, s := range rec.Stages {
			view.Stages = append(view.Stages, stageView{
				Name:     s.Name,
				Title:    s.Title,
				Duration: s.Duration.Round(time.Millisecond).String(),
			})
		}
		if rec.Document != nil {
			view.Document = &docView{
				Status: rec.Document.Status,
				Pages:  len(rec.Document.Pages),
				Chunks: rec.Document.ChunkCount(),
			}
		}
	}
	return view
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run records",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildReadServices()
		if err != nil {
			return err
		}

		recs, err := svc.Runs.List(runsLimit)
		if err != nil {
			return err
		}

		views := make([]runView, 0, len(recs))
		for _, rec := range recs {
			views = append(views, runSummary(rec, false))
		}
		return api.Output(views)
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show one run with its stage history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildReadServices()
		if err != nil {
			return err
		}

		rec, err := svc.Runs.Get(args[0])
		if err != nil {
			return err
		}
		return api.Output(runSummary(*rec, true))
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsGetCmd)
	rootCmd.AddCommand(runsCmd)
}
