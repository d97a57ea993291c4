package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arogya-labs/rxguard/internal/model"
)

var multiJSON bool

var multiCmd = &cobra.Command{
	Use:   "multi PRESCRIPTIONS.yaml",
	Short: "Check prescriptions from multiple doctors and merge their schedules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prescriptions, err := model.LoadPrescriptions(args[0])
		if err != nil {
			return err
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.CheckMultiPrescription(cmd.Context(), prescriptions)
		if err != nil {
			return err
		}

		if multiJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}

		printAggregate(&result.Aggregate)
		printSchedule(result.Schedule)
		return nil
	},
}

func printSchedule(sched model.Schedule) {
	fmt.Println("\nDaily schedule:")
	for _, slot := range model.CanonicalSlots {
		entries, ok := sched[slot]
		if !ok {
			continue
		}
		fmt.Printf("  %s:\n", slot)
		for _, e := range entries {
			marker := ""
			if e.Conflict {
				marker = "  !! interaction"
			}
			fmt.Printf("    %-20s %-10s (%s)%s\n", e.Name, e.Dose, e.Source, marker)
		}
	}
}

func init() {
	multiCmd.Flags().BoolVar(&multiJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(multiCmd)
}
