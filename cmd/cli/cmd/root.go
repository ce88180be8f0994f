// Package cmd provides the CLI commands for parcel-rate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parcel-rate/internal/config"
	"parcel-rate/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile       string
	verbose       bool
	noColor       bool
	referencePath string
	zoneMatrix    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "parcel-rate",
	Short: "Quote parcel shipping rates from carrier reference data",
	Long: `parcel-rate prices parcel shipments against a carrier reference workbook.

It resolves ZIP-to-zone distances, looks up weight-tiered base rates, applies
fuel and delivery-area surcharges plus markup, and compares each quote with
what the carrier actually billed.

Examples:
  parcel-rate quote shipments.csv
  parcel-rate quote --format json --save shipments.csv
  parcel-rate zone 75238 99501
  parcel-rate rate-table --table-markup 12 shipments.csv`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	err := rootCmd.Execute()
	logging.Sync()
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, JSON or .hcl (default is $HOME/.parcel-rate/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&referencePath, "reference", "r", "", "reference workbook (.xlsx) or directory of sheet CSVs")
	rootCmd.PersistentFlags().StringVar(&zoneMatrix, "zone-matrix", "", "standalone zone matrix file replacing the workbook sheet")

	// Add subcommands
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(zoneCmd)
	rootCmd.AddCommand(rateTableCmd)
	rootCmd.AddCommand(criteriaCmd)
	rootCmd.AddCommand(referenceCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

func initConfig() {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if referencePath != "" {
		cfg.Reference.Path = referencePath
	}
	if zoneMatrix != "" {
		cfg.Reference.ZoneMatrix = zoneMatrix
	}
	if noColor {
		cfg.Output.NoColor = true
	}
	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Output.Verbose = true
	}
	config.Set(cfg)

	// Initialize logging
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "parcel-rate version %s\n", Version)
	},
}
