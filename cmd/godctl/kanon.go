package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ugobe007/pythh-sub021/internal/cache"
	"github.com/ugobe007/pythh-sub021/internal/guard"
	"github.com/ugobe007/pythh-sub021/internal/privacy"
)

var kanonCmd = &cobra.Command{
	Use:   "kanon",
	Short: "Inspect k-anonymity risk",
}

var kanonReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute a k-anonymity report over the trailing window",
	Long:  "Reads discovery events and prints every bucket with its k value and alert level. Nothing is published.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		days, _ := cmd.Flags().GetInt("window-days")
		asJSON, _ := cmd.Flags().GetBool("json")

		pg, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		g := guard.New(pg, cache.NewMemoryCache(), nil, nil, guard.Config{WindowDays: cfg.Guard.WindowDays}, logger)
		report, err := g.Compute(ctx, days)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), report)
		}
		formatReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func formatReport(w io.Writer, r *guard.Report) {
	fmt.Fprintf(w, "window %s .. %s\n", r.Window.Start.Format("2006-01-02"), r.Window.End.Format("2006-01-02"))
	for _, level := range privacy.RiskLevels() {
		fmt.Fprintf(w, "  %-8s %d\n", level, r.Counts[level])
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "K\tLEVEL\tWEEK\tGEO\tSECTOR\tSTAGE\tACTION")
	for _, b := range r.Buckets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", b.K, b.RiskLevel, b.Week, b.Geo, b.Sector, b.Stage, b.Action)
	}
	_ = tw.Flush()
}

func init() {
	kanonReportCmd.Flags().Int("window-days", 0, "trailing window in days (default from config)")
	kanonReportCmd.Flags().Bool("json", false, "print the report as JSON")
	kanonCmd.AddCommand(kanonReportCmd)
	rootCmd.AddCommand(kanonCmd)
}
