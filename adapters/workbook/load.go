package workbook

import (
	"go.uber.org/zap"

	"parcel-rate/core/reference"
	"parcel-rate/internal/logging"
)

// LoadConfig locates the reference data on disk
type LoadConfig struct {
	// Path is an xlsx workbook or a directory of per-sheet CSV files
	Path string

	Format Format

	// ZoneMatrixPath optionally replaces the workbook's zone matrix sheet
	ZoneMatrixPath string

	Sheets reference.SheetNames

	Logger *zap.Logger
}

// LoadStore opens the configured files and parses them into a reference store
func LoadStore(cfg LoadConfig) (*reference.Store, error) {
	log := logging.OrDefault(cfg.Logger, "workbook")

	wb, err := Open(cfg.Path, cfg.Format, log)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	opts := reference.LoadOptions{Sheets: cfg.Sheets, Logger: cfg.Logger}
	if cfg.ZoneMatrixPath != "" {
		zm, err := Open(cfg.ZoneMatrixPath, FormatAuto, log)
		if err != nil {
			return nil, err
		}
		defer zm.Close()
		opts.ZoneMatrix = zm
		log.Info("using standalone zone matrix", zap.String("path", cfg.ZoneMatrixPath))
	}

	return reference.Load(wb, opts)
}
