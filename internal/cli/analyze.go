package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"hemogram-alerts-go/internal/analyzer"
	"hemogram-alerts-go/internal/models"
)

var analyzeDeviations bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <fhir.json|->",
	Short: "Print the alerts for a FHIR hemogram resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr, effectiveLevel(""))

		data, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		return runAnalyze(cmd.OutOrStdout(), analyzer.New(logger), data, analyzeDeviations)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeDeviations, "deviations", false, "print deviations with range and severity instead of alerts")
	rootCmd.AddCommand(analyzeCmd)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func runAnalyze(w io.Writer, a *analyzer.Analyzer, data []byte, deviations bool) error {
	hemograms, err := analyzer.ParseFHIR(data)
	if err != nil {
		return err
	}

	var out any
	if deviations {
		all := []analyzer.Deviation{}
		for _, h := range hemograms {
			all = append(all, a.Analyze(h)...)
		}
		out = all
	} else {
		alerts := []models.Alert{}
		for _, h := range hemograms {
			alerts = append(alerts, a.Alerts(h)...)
		}
		out = alerts
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
