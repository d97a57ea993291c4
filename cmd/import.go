package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arogya-labs/rxguard/internal/kb"
)

var importSource string

var importCmd = &cobra.Command{
	Use:   "import INTERACTIONS.csv",
	Short: "Import curated interaction records into the knowledge base",
	Long:  "Reads a CSV with drug_a, drug_b, severity and optional title, description, recommendation columns. Rows with unparseable drugs or severities are skipped and counted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := kb.ImportCSV(cmd.Context(), store, f, importSource)
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d of %d rows (%d skipped)\n", report.Imported, report.Rows, report.Skipped)
		fmt.Printf("  critical: %d  moderate: %d  minor: %d\n",
			report.BySeverity.Critical, report.BySeverity.Moderate, report.BySeverity.Minor)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "curated", "source label stored with each record")
	rootCmd.AddCommand(importCmd)
}
