package cmd

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"parcel-rate/core/ui"
	"parcel-rate/internal/config"
)

var zoneJSON bool

// zoneCmd explains a single zone resolution
var zoneCmd = &cobra.Command{
	Use:   "zone <origin> <destination>",
	Short: "Resolve the shipping zone between two ZIP codes",
	Long: `Resolve the zone between an origin and a destination ZIP and show how
the lookup got there: the prefixes used, the matrix keys matched and every
fallback taken.`,
	Args: cobra.ExactArgs(2),
	RunE: runZone,
}

func init() {
	zoneCmd.Flags().BoolVar(&zoneJSON, "json", false, "print the resolution as JSON")
	addCriteriaFlags(zoneCmd)
}

func runZone(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(criteriaFlags(cmd))
	if err != nil {
		return err
	}

	res := eng.ResolveZone(args[0], args[1])

	if zoneJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	uw := ui.NewWriter(cmd.OutOrStdout(), config.Get().Output.NoColor)
	uw.Header("Zone " + args[0] + " → " + args[1])

	table := uw.NewTable("Field", "Value")
	table.AddRow("Zone", strconv.Itoa(res.Zone))
	table.AddRow("Origin prefix", res.OriginPrefix)
	table.AddRow("Destination prefix", res.DestPrefix)
	table.AddRow("Matched origin", res.MatchedOrigin)
	table.AddRow("Matched destination", res.MatchedDest)
	table.AddRow("Defaulted", strconv.FormatBool(res.Defaulted))
	table.Render()

	if len(res.Fallbacks) > 0 {
		uw.SubHeader("Fallbacks")
		uw.Println("%s", strings.Join(res.Fallbacks, "\n"))
	}
	if res.Err != nil {
		uw.Warning("%v", res.Err)
	}
	return nil
}
