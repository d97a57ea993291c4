package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var kbStatusJSON bool

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Knowledge base maintenance",
}

var kbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base contents and cache state",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}

		if kbStatusJSON {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}

		fmt.Printf("Interaction pairs: %d\n", stats.Pairs)
		fmt.Printf("Distinct drugs:    %d\n", stats.Drugs)
		fmt.Printf("  critical: %d  moderate: %d  minor: %d\n",
			stats.BySeverity.Critical, stats.BySeverity.Moderate, stats.BySeverity.Minor)
		fmt.Printf("Cached lookups:    %d\n", stats.CachedLookups)
		return nil
	},
}

var kbPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cached lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.DeleteExpiredLookups(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired lookups\n", n)
		return nil
	},
}

func init() {
	kbStatusCmd.Flags().BoolVar(&kbStatusJSON, "json", false, "emit JSON instead of text")
	kbCmd.AddCommand(kbStatusCmd)
	kbCmd.AddCommand(kbPurgeCmd)
	rootCmd.AddCommand(kbCmd)
}
