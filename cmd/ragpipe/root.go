package main

import (
	"github.com/spf13/cobra"

	"github.com/bookRa/ragpipe/internal/api"
	"github.com/bookRa/ragpipe/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "ragpipe",
	Short: "Document to RAG conversion pipeline with LLM-powered parsing",
	Long: `Ragpipe converts documents into retrieval-ready chunks with embeddings
using LLM-powered parsing and cleaning.

The pipeline includes:
  - Batch submission with bounded document concurrency
  - Vision-model page parsing with rendered page images
  - Streaming guardrails against runaway model output
  - Chunking, summarization, and embedding generation`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.ragpipe/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "ragpipe home directory (default: ~/.ragpipe)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
