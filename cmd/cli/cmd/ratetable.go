package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"parcel-rate/core/output"
	"parcel-rate/core/ratetable"
	"parcel-rate/core/types"
	"parcel-rate/internal/config"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

var (
	rtFormat    string
	rtOutput    string
	rtMarkup    float64
	rtMinMargin float64
	rtFromRun   string
)

// rateTableCmd builds a published rate card from priced shipments
var rateTableCmd = &cobra.Command{
	Use:   "rate-table [shipments]",
	Short: "Generate a weight-by-zone rate table from priced shipments",
	Long: `Generate a rate table of 165 weight tiers by zones 2-8.

Each cell is the mean final rate of the shipments in that tier and zone plus
a markup, never less than the minimum margin. Empty cells are interpolated
from their zone neighbours (marked *) or filled with a default (marked **).

The shipments are either priced from a file or taken from an archived run.

Examples:
  parcel-rate rate-table shipments.csv
  parcel-rate rate-table --table-markup 15 --min-margin 1 --format csv -o card.csv shipments.csv
  parcel-rate rate-table --from-run 3f1c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRateTable,
}

func init() {
	rateTableCmd.Flags().StringVarP(&rtFormat, "format", "f", "", "output format (cli, json, csv, yaml)")
	rateTableCmd.Flags().StringVarP(&rtOutput, "output", "o", "", "write output to a file instead of stdout")
	rateTableCmd.Flags().Float64Var(&rtMarkup, "table-markup", 0, "markup percent over the mean final rate")
	rateTableCmd.Flags().Float64Var(&rtMinMargin, "min-margin", 0, "minimum dollar margin per cell")
	rateTableCmd.Flags().StringVar(&rtFromRun, "from-run", "", "use the results of an archived run")
	addCriteriaFlags(rateTableCmd)
}

func runRateTable(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	var (
		results []types.PricedShipment
		meta    output.Metadata
	)

	switch {
	case rtFromRun != "":
		archive, err := openArchive()
		if err != nil {
			return err
		}
		defer archive.Close()

		run, err := archive.Get(ctx, rtFromRun)
		if err != nil {
			return err
		}
		results = run.Results
		meta = output.Metadata{RunID: run.ID, Reference: run.Fingerprint, Source: run.Source}
	case len(args) == 1:
		batch, err := priceFile(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		results = batch.Results
		meta = output.Metadata{RunID: batch.RunID, Reference: batch.Fingerprint, Source: filepath.Base(args[0])}
	default:
		return rerrors.Input("a shipment file or --from-run is required")
	}

	opts := config.Get().RateTable.Options()
	if cmd.Flags().Changed("table-markup") {
		opts.MarkupPercent = decimal.NewFromFloat(rtMarkup)
	}
	if cmd.Flags().Changed("min-margin") {
		opts.MinMargin = decimal.NewFromFloat(rtMinMargin)
	}
	opts.Logger = logging.Named("ratetable")

	grid, err := ratetable.Generate(results, opts)
	if err != nil {
		return err
	}

	uw := stderrUI()
	for _, w := range grid.Coverage.Warnings {
		uw.Warning("%s", w)
	}

	meta.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	meta.Version = Version
	return render(&output.Report{RateTable: grid, Metadata: meta}, rtFormat, rtOutput)
}
