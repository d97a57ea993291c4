package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arogya-labs/rxguard/internal/anomaly"
	"github.com/arogya-labs/rxguard/internal/model"
)

var (
	dosesJSON    bool
	dosesAge     int
	dosesRenal   bool
	dosesHepatic bool
)

var dosesCmd = &cobra.Command{
	Use:   "doses PRESCRIPTIONS.yaml",
	Short: "Validate prescribed doses against safe dosage ranges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prescriptions, err := model.LoadPrescriptions(args[0])
		if err != nil {
			return err
		}

		var pc *anomaly.PatientContext
		if dosesAge > 0 || dosesRenal || dosesHepatic {
			pc = &anomaly.PatientContext{
				Age:               dosesAge,
				RenalImpairment:   dosesRenal,
				HepaticImpairment: dosesHepatic,
			}
		}

		detector := anomaly.NewDetector()
		var reports []anomaly.Report
		for _, rx := range prescriptions {
			reports = append(reports, detector.CheckPrescription(rx, pc)...)
		}

		if dosesJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{"reports": reports})
		}

		anomalies := 0
		for _, r := range reports {
			if r.HasAnomaly {
				anomalies++
			}
		}
		fmt.Printf("Checked %d medications, %d anomalies\n\n", len(reports), anomalies)
		for _, r := range reports {
			fmt.Printf("  %-8s %s\n", strings.ToUpper(string(r.Level)), r.Medication)
			if r.Issue != "" {
				fmt.Printf("           %s\n", r.Issue)
			}
			for _, c := range r.Concerns {
				fmt.Printf("           %s\n", c)
			}
			if r.HasAnomaly && r.Recommendation != "" {
				fmt.Printf("           %s\n", r.Recommendation)
			}
		}
		return nil
	},
}

func init() {
	dosesCmd.Flags().BoolVar(&dosesJSON, "json", false, "emit JSON instead of text")
	dosesCmd.Flags().IntVar(&dosesAge, "age", 0, "patient age in years")
	dosesCmd.Flags().BoolVar(&dosesRenal, "renal", false, "patient has renal impairment")
	dosesCmd.Flags().BoolVar(&dosesHepatic, "hepatic", false, "patient has hepatic impairment")
	rootCmd.AddCommand(dosesCmd)
}
