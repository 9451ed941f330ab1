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
	"github.com/ugobe007/pythh-sub021/internal/store"
	"github.com/ugobe007/pythh-sub021/internal/versions"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Manage weight versions",
}

// -- weights active --

var weightsActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Print the active weight version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		v, err := versions.NewService(pg, nil, logger).Active(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

// -- weights list --

var weightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every weight version, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		all, err := versions.NewService(pg, nil, logger).List(ctx)
		if err != nil {
			return err
		}
		formatVersions(cmd.OutOrStdout(), all)
		return nil
	},
}

func formatVersions(w io.Writer, all []*store.WeightVersion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tACTIVE\tCREATED\tSUPERSEDED BY\tDESCRIPTION")
	for _, v := range all {
		by := "-"
		if v.SupersededBy != nil {
			by = *v.SupersededBy
		}
		active := ""
		if v.Active {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Version, active, v.CreatedAt.Format("2006-01-02 15:04"), by, v.Description)
	}
	_ = tw.Flush()
}

// -- weights supersede --

var weightsSupersedeCmd = &cobra.Command{
	Use:   "supersede",
	Short: "Replace the active weight version",
	Long:  "Validates a weight file and atomically makes it the active version. --old must name the version currently active.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		oldVersion, _ := cmd.Flags().GetString("old")
		newVersion, _ := cmd.Flags().GetString("new")
		file, _ := cmd.Flags().GetString("file")
		desc, _ := cmd.Flags().GetString("description")

		weights, err := loadWeights(file)
		if err != nil {
			return err
		}

		pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		v, err := versions.NewService(pg, nil, logger).Supersede(ctx, versions.SupersedeCommand{
			OldVersion:  oldVersion,
			NewVersion:  newVersion,
			Weights:     weights,
			Description: desc,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active version is now %s\n", v.Version)
		return nil
	},
}

// loadWeights reads a YAML (or JSON) weight configuration. Fields the file
// omits keep the shipped defaults, except component_weights which must be
// given in full.
func loadWeights(path string) (scoring.WeightConfig, error) {
	cfg := scoring.DefaultWeightConfig()
	cfg.ComponentWeights = nil
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "read weights file %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "parse weights file %s", path)
	}
	return cfg, nil
}

// -- weights rollback --

var weightsRollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Reactivate an earlier weight version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		v, err := versions.NewService(pg, nil, logger).Rollback(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active version is now %s\n", v.Version)
		return nil
	},
}

func init() {
	weightsSupersedeCmd.Flags().String("old", "", "version currently active")
	weightsSupersedeCmd.Flags().String("new", "", "identifier for the new version")
	weightsSupersedeCmd.Flags().StringP("file", "f", "", "YAML weight configuration")
	weightsSupersedeCmd.Flags().String("description", "", "change note stored with the version")
	_ = weightsSupersedeCmd.MarkFlagRequired("old")
	_ = weightsSupersedeCmd.MarkFlagRequired("new")
	_ = weightsSupersedeCmd.MarkFlagRequired("file")

	weightsCmd.AddCommand(weightsActiveCmd, weightsListCmd, weightsSupersedeCmd, weightsRollbackCmd)
	rootCmd.AddCommand(weightsCmd)
}
