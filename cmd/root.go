// Package cmd defines the harborchat CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "harborchat",
	Short: "harborchat - company chatbot backend with retrieval-augmented answers",
	Long: `harborchat serves a company chatbot over HTTP: documents are ingested,
chunked and embedded into a similarity index, and chat answers are grounded
in the most relevant chunks. Runs against Postgres+pgvector when a
DATABASE_URL is configured, fully in memory otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
