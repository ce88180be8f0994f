package cmd

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"parcel-rate/adapters/storage"
	"parcel-rate/core/output"
	"parcel-rate/core/ui"
	"parcel-rate/internal/config"
)

var (
	runsSource string
	runsLimit  int
	runsSince  time.Duration
	runsJSON   bool
	runsFormat string
	runsOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage archived pricing runs",
	Long: `Manage pricing runs archived with "quote --save".

Examples:
  parcel-rate runs list --source shipments.csv
  parcel-rate runs show <id>
  parcel-rate runs compare <old-id> <new-id>`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsCompareCmd = &cobra.Command{
	Use:   "compare <old-id> <new-id>",
	Short: "Compare the totals and per-shipment rates of two runs",
	Args:  cobra.ExactArgs(2),
	RunE:  runRunsCompare,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsListCmd.Flags().StringVar(&runsSource, "source", "", "only runs of this source")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs")
	runsListCmd.Flags().DurationVar(&runsSince, "since", 0, "only runs newer than this (e.g. 168h)")

	runsShowCmd.Flags().StringVarP(&runsFormat, "format", "f", "", "output format (cli, json, csv, yaml)")
	runsShowCmd.Flags().StringVarP(&runsOutput, "output", "o", "", "write output to a file instead of stdout")

	runsCompareCmd.Flags().BoolVar(&runsJSON, "json", false, "print the comparison as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsCompareCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

func withArchive(cmd *cobra.Command, fn func(ctx context.Context, archive storage.Store) error) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()
	return fn(cmd.Context(), archive)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	return withArchive(cmd, func(ctx context.Context, archive storage.Store) error {
		filter := &storage.ListFilter{Source: runsSource, Limit: runsLimit}
		if runsSince > 0 {
			filter.Since = time.Now().Add(-runsSince)
		}

		runs, err := archive.List(ctx, filter)
		if err != nil {
			return err
		}

		uw := ui.NewWriter(cmd.OutOrStdout(), config.Get().Output.NoColor)
		if len(runs) == 0 {
			uw.Info("No archived runs")
			return nil
		}

		table := uw.NewTable("ID", "Source", "Created", "Shipments", "Failed", "Total", "Reference")
		for _, r := range runs {
			table.AddRow(
				r.ID,
				r.Source,
				humanize.Time(r.CreatedAt),
				strconv.Itoa(r.Summary.Shipments),
				strconv.Itoa(r.Summary.Failed),
				output.Dollars(r.Summary.TotalFinal),
				shortFingerprint(r.Fingerprint),
			)
		}
		table.Render()
		return nil
	})
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	return withArchive(cmd, func(ctx context.Context, archive storage.Store) error {
		run, err := archive.Get(ctx, args[0])
		if err != nil {
			return err
		}

		summary := run.Summary
		report := &output.Report{
			Results: run.Results,
			Summary: &summary,
			Metadata: output.Metadata{
				RunID:       run.ID,
				GeneratedAt: run.CreatedAt.UTC().Format(time.RFC3339),
				Duration:    run.Duration.Round(time.Millisecond).String(),
				Reference:   run.Fingerprint,
				Source:      run.Source,
				Version:     run.Metadata["version"],
			},
		}
		return render(report, runsFormat, runsOutput)
	})
}

func runRunsCompare(cmd *cobra.Command, args []string) error {
	return withArchive(cmd, func(ctx context.Context, archive storage.Store) error {
		result, err := archive.Compare(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		uw := ui.NewWriter(cmd.OutOrStdout(), config.Get().Output.NoColor)
		uw.Header("Run comparison")
		if !result.SameReference {
			uw.Warning("Runs were priced against different reference data")
		}

		pct := "-"
		if result.DeltaPercent.Valid {
			pct = result.DeltaPercent.Decimal.StringFixed(2) + "%"
		}
		totals := uw.NewTable("", "Old", "New", "Delta")
		totals.AddRow("Total", output.Dollars(result.OldTotal), output.Dollars(result.NewTotal),
			output.Dollars(result.Delta)+" ("+pct+")")
		totals.AddRow("Savings", output.Dollars(result.OldSavings), output.Dollars(result.NewSavings),
			output.Dollars(result.NewSavings.Sub(result.OldSavings)))
		totals.Render()

		if len(result.Changed) == 0 {
			uw.Success("No shipment rates changed")
			return nil
		}

		uw.SubHeader("Changed shipments")
		changed := uw.NewTable("Shipment", "Old", "New")
		for _, d := range result.Changed {
			changed.AddRow(d.ShipmentID, nullDollars(d.Old), nullDollars(d.New))
		}
		changed.Render()
		return nil
	})
}

func nullDollars(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return output.Dollars(d.Decimal)
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	return withArchive(cmd, func(ctx context.Context, archive storage.Store) error {
		if err := archive.Delete(ctx, args[0]); err != nil {
			return err
		}
		ui.NewWriter(cmd.OutOrStdout(), config.Get().Output.NoColor).Success("Deleted run %s", args[0])
		return nil
	})
}
