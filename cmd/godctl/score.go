package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Work with GOD scores",
}

var scorePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Score a feature file without touching the database",
	Long:  "Runs the pure calculator over a YAML or JSON feature file. Useful for checking a weight file before superseding.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		featuresPath, _ := cmd.Flags().GetString("features")
		weightsPath, _ := cmd.Flags().GetString("weights")
		asJSON, _ := cmd.Flags().GetBool("json")

		features, err := loadFeatures(featuresPath)
		if err != nil {
			return err
		}
		weights := scoring.DefaultWeightConfig()
		if weightsPath != "" {
			if weights, err = loadWeights(weightsPath); err != nil {
				return err
			}
		}
		if err := weights.Validate(); err != nil {
			return err
		}

		res := scoring.ComputeScore(features, weights)
		if asJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		formatPreview(cmd.OutOrStdout(), res)
		return nil
	},
}

func loadFeatures(path string) (scoring.Features, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read features file %s", path)
	}
	var f scoring.Features
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "parse features file %s", path)
	}
	if len(f) == 0 {
		return nil, eris.Errorf("features file %s is empty", path)
	}
	return f, nil
}

func formatPreview(w io.Writer, res scoring.ScoreResult) {
	fmt.Fprintf(w, "total: %.1f\n\n", res.Total)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tRAW\tNORMALIZED\tWEIGHT\tCONTRIBUTION")
	for _, c := range res.Explanation.Components {
		raw := "-"
		if c.Available {
			raw = fmt.Sprintf("%.3f", c.Raw)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.2f\t%.2f\n", c.Name, raw, c.Normalized, c.Weight, c.Contribution)
	}
	_ = tw.Flush()
}

func init() {
	scorePreviewCmd.Flags().String("features", "", "YAML or JSON feature file")
	scorePreviewCmd.Flags().String("weights", "", "weight file (default: shipped weights)")
	scorePreviewCmd.Flags().Bool("json", false, "print the result as JSON")
	_ = scorePreviewCmd.MarkFlagRequired("features")

	scoreCmd.AddCommand(scorePreviewCmd)
	rootCmd.AddCommand(scoreCmd)
}
