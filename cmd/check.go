package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arogya-labs/rxguard/internal/model"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check DRUG DRUG [DRUG...]",
	Short: "Check a drug list for pairwise interactions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.CheckInteractions(cmd.Context(), args)
		if err != nil {
			return err
		}

		if checkJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		printAggregate(result)
		return nil
	},
}

func printAggregate(result *model.AggregateResult) {
	names := make([]string, len(result.Drugs))
	for i, d := range result.Drugs {
		names[i] = d.Name
	}
	fmt.Printf("Drugs:   %s\n", strings.Join(names, ", "))
	fmt.Printf("Checked: %d pairs\n", result.PairsChecked)

	switch {
	case result.Safe == nil:
		fmt.Println("Safe:    n/a (fewer than two distinct drugs)")
	case *result.Safe:
		fmt.Println("Safe:    yes")
	default:
		fmt.Println("Safe:    NO")
	}

	if len(result.Findings) == 0 {
		fmt.Println("No interactions found.")
		return
	}

	fmt.Printf("\nFindings (%d critical, %d moderate, %d minor, %d unknown):\n",
		result.Counts.Critical, result.Counts.Moderate, result.Counts.Minor, result.Counts.Unknown)
	for _, f := range result.Findings {
		marker := ""
		if f.CrossSource {
			marker = " [cross-prescription]"
		}
		fmt.Printf("  %-8s %s + %s%s\n", strings.ToUpper(string(f.Severity)), f.DrugA, f.DrugB, marker)
		if f.Record != nil {
			if f.Record.Description != "" {
				fmt.Printf("           %s\n", f.Record.Description)
			}
			if f.Record.Recommendation != "" {
				fmt.Printf("           Recommendation: %s\n", f.Record.Recommendation)
			}
		}
		if f.LookupError != "" {
			fmt.Printf("           lookup failed: %s\n", f.LookupError)
		}
	}
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(checkCmd)
}
