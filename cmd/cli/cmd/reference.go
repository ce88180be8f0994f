package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"parcel-rate/core/reference"
	"parcel-rate/core/ui"
	"parcel-rate/internal/config"
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Inspect the reference workbook",
}

var referenceInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what was loaded from the reference data",
	Long: `Load the reference data and print diagnostics: zone matrix size and
fill ratio, surcharge eligibility counts, rate table rows and the dataset
fingerprint that archived runs are tagged with.`,
	Args: cobra.NoArgs,
	RunE: runReferenceInfo,
}

func init() {
	referenceCmd.AddCommand(referenceInfoCmd)
}

const multiFlaggedSample = 10

func runReferenceInfo(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	cfg := config.Get()
	uw := ui.NewWriter(cmd.OutOrStdout(), cfg.Output.NoColor)
	uw.Header("Reference data")
	uw.Println("Source:      %s", cfg.Reference.Path)
	if cfg.Reference.ZoneMatrix != "" {
		uw.Println("Zone matrix: %s", cfg.Reference.ZoneMatrix)
	}
	uw.Println("Fingerprint: %s", store.ShortFingerprint())

	uw.SubHeader("Zone matrix")
	zones := uw.NewTable("Origins", "Destinations", "Filled")
	zones.AddRow(
		humanize.Comma(int64(len(store.Zones.Origins()))),
		humanize.Comma(int64(len(store.Zones.Destinations()))),
		fmt.Sprintf("%.1f%%", store.Zones.FillRatio()*100),
	)
	zones.Render()

	stats := store.Eligibility.Stats()
	uw.SubHeader("Surcharge eligibility")
	elig := uw.NewTable("ZIPs", "DAS", "EDAS", "Remote", "Multi-flagged")
	elig.AddRow(
		humanize.Comma(int64(stats.Total)),
		humanize.Comma(int64(stats.DAS)),
		humanize.Comma(int64(stats.EDAS)),
		humanize.Comma(int64(stats.Remote)),
		humanize.Comma(int64(len(stats.MultiFlagged))),
	)
	elig.Render()
	if len(stats.MultiFlagged) > 0 {
		sample := lo.Subset(stats.MultiFlagged, 0, multiFlaggedSample)
		uw.Warning("ZIPs in several categories (highest applicable surcharge wins): %s", strings.Join(sample, ", "))
	}

	uw.SubHeader("Rate table")
	rates := uw.NewTable("Category", "Weight breaks", "Max weight")
	for _, c := range []reference.Category{reference.CategoryParcel, reference.CategoryLetter} {
		rows := store.Rates.Rows(c)
		maxWeight := "-"
		if len(rows) > 0 {
			maxWeight = strconv.FormatFloat(rows[len(rows)-1].Weight, 'f', -1, 64)
		}
		rates.AddRow(string(c), strconv.Itoa(len(rows)), maxWeight)
	}
	rates.Render()
	uw.Println("Zones: %s", strings.Join(lo.Map(store.Rates.Zones(), func(z int, _ int) string {
		return strconv.Itoa(z)
	}), ", "))

	return nil
}
