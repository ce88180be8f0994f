// Package cmd - quote command
package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parcel-rate/adapters/shipments"
	"parcel-rate/adapters/storage"
	"parcel-rate/core/engine"
	"parcel-rate/core/output"
	"parcel-rate/internal/config"
	"parcel-rate/internal/logging"
)

var (
	quoteFormat     string
	quoteOutput     string
	quoteWeightUnit string
	quoteSave       bool
	quoteTimeout    time.Duration
)

// quoteCmd prices a shipment file
var quoteCmd = &cobra.Command{
	Use:   "quote <shipments>",
	Short: "Price a file of shipments",
	Long: `Price every shipment in a CSV, JSON or YAML file.

Each shipment is priced independently: a row that cannot be priced is
reported with its errors and never stops the rest of the batch.

Examples:
  parcel-rate quote shipments.csv
  parcel-rate quote --markup 12 --format csv -o quoted.csv shipments.csv
  parcel-rate quote --weight-unit oz --save orders.json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVarP(&quoteFormat, "format", "f", "", "output format (cli, json, csv, yaml)")
	quoteCmd.Flags().StringVarP(&quoteOutput, "output", "o", "", "write output to a file instead of stdout")
	quoteCmd.Flags().StringVar(&quoteWeightUnit, "weight-unit", "", "unit of the weight columns (lb, oz, g)")
	quoteCmd.Flags().BoolVar(&quoteSave, "save", false, "archive the priced run")
	quoteCmd.Flags().DurationVar(&quoteTimeout, "timeout", 10*time.Minute, "timeout for pricing the batch")
	addCriteriaFlags(quoteCmd)
}

// priceFile reads and prices a shipment file
func priceFile(ctx context.Context, cmd *cobra.Command, path string) (*engine.Batch, error) {
	eng, err := loadEngine(criteriaFlags(cmd))
	if err != nil {
		return nil, err
	}

	cfg := config.Get()
	unit := cfg.Input.WeightUnit
	if quoteWeightUnit != "" {
		unit = quoteWeightUnit
	}
	in, err := shipments.ReadFile(path, shipments.Options{
		Mapping:          cfg.Input.Mapping,
		WeightUnit:       shipments.WeightUnit(unit),
		DefaultOriginZIP: eng.Criteria().OriginZIP,
		Logger:           logging.Named("shipments"),
	})
	if err != nil {
		return nil, err
	}

	uw := stderrUI()
	if len(in.Unmapped) > 0 {
		uw.Info("Ignoring columns: %v", in.Unmapped)
	}
	if len(in.Warnings) > 0 && !config.Get().Output.Verbose {
		uw.Warning("%d input values were unusable and zeroed (-v lists them)", len(in.Warnings))
	}
	for _, w := range in.Warnings {
		uw.Debug("%s", w.String())
	}

	sp := uw.NewSpinner("Pricing shipments")
	sp.Start()
	batch, err := eng.PriceShipments(ctx, in.Shipments)
	sp.Stop(err == nil)
	if err != nil {
		return batch, err
	}

	logging.Info("priced batch",
		zap.String("run_id", batch.RunID),
		zap.Int("shipments", len(batch.Results)),
		zap.Int("failed", len(batch.Failed())),
		zap.Duration("duration", batch.Duration))
	return batch, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), quoteTimeout)
	defer cancel()

	path := args[0]
	batch, err := priceFile(ctx, cmd, path)
	if err != nil {
		if !partialBatch(batch, err) {
			return err
		}
		stderrUI().Warning("Pricing stopped early (%v): %d of %d shipments are unpriced or failed",
			err, len(batch.Failed()), len(batch.Results))
	}

	if quoteSave {
		if err := saveRun(context.WithoutCancel(ctx), batch, path); err != nil {
			return err
		}
	}

	if rerr := render(output.NewReport(batch, filepath.Base(path), Version), quoteFormat, quoteOutput); rerr != nil {
		return rerr
	}
	return err
}

// partialBatch reports whether err only cut pricing short, leaving a batch
// worth reporting
func partialBatch(batch *engine.Batch, err error) bool {
	if batch == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func saveRun(ctx context.Context, batch *engine.Batch, source string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	run := storage.NewStoredRun(batch, filepath.Base(source))
	run.Metadata = map[string]string{"path": source, "version": Version}
	if err := archive.Save(ctx, run); err != nil {
		return err
	}
	stderrUI().Success("Saved run %s", run.ID)
	return nil
}
