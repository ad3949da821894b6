package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/taskwarden/internal/clifmt"
)

func newCheckCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check <task description>",
		Short: "Classify a task without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			classifier, err := classifierFromViper()
			if err != nil {
				return err
			}
			assessment := classifier.Classify(strings.Join(args, " "))

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(assessment)
			}

			fmt.Println(clifmt.Headerf("Risk assessment"))
			fmt.Printf("  level:      %s\n", clifmt.Level(string(assessment.Level)))
			fmt.Printf("  weight:     %.2f\n", assessment.Weight)
			fmt.Printf("  confidence: %.0f%%\n", assessment.Confidence*100)
			if len(assessment.Factors) > 0 {
				fmt.Println("  factors:")
				for _, f := range assessment.Factors {
					fmt.Printf("    - %s\n", f)
				}
			}
			fmt.Println()
			if assessment.RequiresApproval {
				fmt.Println(clifmt.Warn(assessment.Recommendation))
			} else {
				fmt.Println(clifmt.Dim(assessment.Recommendation))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the assessment as JSON")
	return cmd
}
