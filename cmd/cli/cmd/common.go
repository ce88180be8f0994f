package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parcel-rate/adapters/storage"
	"parcel-rate/adapters/workbook"
	"parcel-rate/core/criteria"
	"parcel-rate/core/engine"
	"parcel-rate/core/output"
	"parcel-rate/core/reference"
	"parcel-rate/core/ui"
	"parcel-rate/internal/config"
	"parcel-rate/internal/logging"
)

// stderrUI writes progress and warnings where they cannot mix with
// machine-readable output
func stderrUI() *ui.Writer {
	cfg := config.Get()
	uw := ui.NewWriter(os.Stderr, cfg.Output.NoColor)
	if cfg.Output.Verbose {
		uw.SetVerbosity(2)
	}
	return uw
}

// loadStore loads the configured reference data behind a spinner
func loadStore() (*reference.Store, error) {
	cfg := config.Get()

	sp := stderrUI().NewSpinner("Loading reference data from " + cfg.Reference.Path)
	sp.Start()
	store, err := workbook.LoadStore(workbook.LoadConfig{
		Path:           cfg.Reference.Path,
		Format:         workbook.Format(strings.ToLower(cfg.Reference.Format)),
		ZoneMatrixPath: cfg.Reference.ZoneMatrix,
		Sheets:         cfg.Reference.Sheets,
		Logger:         logging.Named("reference"),
	})
	sp.Stop(err == nil)
	return store, err
}

// loadEngine builds an engine over the configured reference data with the
// configured criteria overrides and then overrides applied
func loadEngine(overrides map[string]any) (*engine.Engine, error) {
	store, err := loadStore()
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(store, config.Get().Engine, engine.WithLogger(logging.Named("engine")))
	if err != nil {
		return nil, err
	}

	for _, partial := range []map[string]any{config.Get().Criteria, overrides} {
		if len(partial) == 0 {
			continue
		}
		reportCriteriaUpdate(eng.UpdateCriteria(partial))
	}
	return eng, nil
}

func reportCriteriaUpdate(r criteria.UpdateReport) {
	uw := stderrUI()
	if len(r.Coerced) > 0 {
		uw.Warning("Invalid criteria values kept their previous setting: %s", strings.Join(r.Coerced, ", "))
	}
	if len(r.Ignored) > 0 {
		uw.Warning("Unknown criteria keys ignored: %s", strings.Join(r.Ignored, ", "))
	}
	logging.Debug("criteria updated", zap.Strings("applied", r.Applied))
}

// criteriaFlags collects the criteria override flags the user set
func criteriaFlags(cmd *cobra.Command) map[string]any {
	flags := map[string]string{
		"origin":  criteria.KeyOriginZIP,
		"markup":  criteria.KeyMarkupPercentage,
		"fuel":    criteria.KeyFuelPercentage,
		"divisor": criteria.KeyDimDivisor,
	}

	out := make(map[string]any)
	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		out[key] = f.Value.String()
	}
	return out
}

func addCriteriaFlags(cmd *cobra.Command) {
	cmd.Flags().String("origin", "", "origin ZIP used when a shipment has none")
	cmd.Flags().Float64("markup", 0, "global markup percentage")
	cmd.Flags().Float64("fuel", 0, "fuel surcharge percentage")
	cmd.Flags().Float64("divisor", 0, "dimensional weight divisor")
}

// openOutput returns stdout for "" or "-", else creates path
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// render writes report in format to path
func render(report *output.Report, format, path string) error {
	cfg := config.Get()
	if format == "" {
		format = cfg.Output.DefaultFormat
	}

	registry := output.DefaultRegistry(output.CLIOptions{
		NoColor: cfg.Output.NoColor,
		MaxRows: cfg.Output.MaxRows,
		Verbose: cfg.Output.Verbose,
	})
	formatter, err := registry.Get(format)
	if err != nil {
		return err
	}

	w, closeFn, err := openOutput(path)
	if err != nil {
		return err
	}
	if err := formatter.Render(w, report); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func openArchive() (storage.Store, error) {
	cfg := config.Get()
	return storage.StoreFactory(storage.Backend(cfg.Storage.Backend), map[string]string{"path": cfg.Storage.Path})
}
