// Package cli provides the command line interface for the ingestion
// pipeline.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ragpipeline",
	Short: "Document ingestion pipeline for retrieval-augmented generation",
	Long: `ragpipeline watches document sources, extracts and chunks their text,
embeds the chunks and stores everything in a vector database.

Supported sources are a local directory, a Google Drive folder and a
queue of git repositories.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
