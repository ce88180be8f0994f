package cmd

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parcel-rate/core/criteria"
	"parcel-rate/core/types"
	"parcel-rate/core/ui"
	"parcel-rate/internal/config"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

var criteriaJSON bool

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Show or change the pricing criteria",
}

var criteriaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective criteria",
	Long: `Show the criteria pricing would use: the reference workbook's Criteria
sheet with the config file overrides and any flags applied.`,
	Args: cobra.NoArgs,
	RunE: runCriteriaShow,
}

var criteriaSetCmd = &cobra.Command{
	Use:   "set <key=value>...",
	Short: "Persist criteria overrides in the config file",
	Long: `Persist criteria overrides in the config file.

Service-level markups use a dotted key. A value of null clears the global
markup so the service-level markups apply.

Examples:
  parcel-rate criteria set fuel_surcharge_percentage=17.5
  parcel-rate criteria set markup_percentage=null service_level_markups.next_day=30`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCriteriaSet,
}

func init() {
	criteriaShowCmd.Flags().BoolVar(&criteriaJSON, "json", false, "print the criteria as JSON")
	addCriteriaFlags(criteriaShowCmd)

	criteriaCmd.AddCommand(criteriaShowCmd)
	criteriaCmd.AddCommand(criteriaSetCmd)
}

func runCriteriaShow(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(criteriaFlags(cmd))
	if err != nil {
		return err
	}
	c := eng.Criteria()

	if criteriaJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	uw := ui.NewWriter(cmd.OutOrStdout(), config.Get().Output.NoColor)
	uw.Header("Pricing criteria")

	markup := "none (service-level markups apply)"
	if c.MarkupPercentage.Valid {
		markup = c.MarkupPercentage.Decimal.String() + "%"
	}

	table := uw.NewTable("Setting", "Value")
	table.AddRow("Origin ZIP", c.OriginZIP)
	table.AddRow("Dimensional divisor", strconv.FormatFloat(c.DimDivisor, 'f', -1, 64))
	table.AddRow("Fuel surcharge", c.FuelSurchargePercentage.String()+"%")
	table.AddRow("DAS surcharge", "$"+c.DASSurcharge.StringFixed(2))
	table.AddRow("EDAS surcharge", "$"+c.EDASSurcharge.StringFixed(2))
	table.AddRow("Remote surcharge", "$"+c.RemoteSurcharge.StringFixed(2))
	table.AddRow("Global markup", markup)
	table.Render()

	uw.SubHeader("Service-level markups")
	levels := uw.NewTable("Service level", "Markup")
	for _, level := range types.ServiceLevels {
		pct, source := c.MarkupFor(level)
		levels.AddRow(string(level), pct.String()+"% ("+string(source)+")")
	}
	levels.Render()
	return nil
}

// parseAssignments turns key=value pairs into a criteria update map.
// "service_level_markups.<level>=<pct>" entries are grouped, "null" is nil.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any)
	levels := make(map[string]any)

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, rerrors.Input("expected key=value, got " + arg)
		}
		value = strings.TrimSpace(value)

		var v any = value
		if strings.EqualFold(value, "null") {
			v = nil
		}

		if level, found := strings.CutPrefix(key, criteria.KeyServiceLevelMarkups+"."); found {
			levels[level] = v
			continue
		}
		out[key] = v
	}

	if len(levels) > 0 {
		out[criteria.KeyServiceLevelMarkups] = levels
	}
	return out, nil
}

func runCriteriaSet(cmd *cobra.Command, args []string) error {
	partial, err := parseAssignments(args)
	if err != nil {
		return err
	}

	_, report := criteria.Default().Apply(partial, logging.Named("criteria"))
	if len(report.Coerced) > 0 || len(report.Ignored) > 0 {
		bad := append(append([]string{}, report.Coerced...), report.Ignored...)
		sort.Strings(bad)
		return rerrors.Input("invalid criteria: " + strings.Join(bad, ", "))
	}

	// flags are applied to the global config, so persist from the file alone
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cfg.Criteria == nil {
		cfg.Criteria = make(map[string]any)
	}
	for key, v := range partial {
		if key == criteria.KeyServiceLevelMarkups {
			merged, _ := cfg.Criteria[key].(map[string]any)
			if merged == nil {
				merged = make(map[string]any)
			}
			for level, pct := range v.(map[string]any) {
				merged[level] = pct
			}
			v = merged
		}
		cfg.Criteria[key] = v
	}

	if err := cfg.Save(path); err != nil {
		return err
	}

	logging.Info("criteria saved", zap.String("path", path), zap.Strings("keys", report.Applied))
	ui.NewWriter(cmd.OutOrStdout(), cfg.Output.NoColor).Success("Saved %s to %s", strings.Join(report.Applied, ", "), path)
	return nil
}
