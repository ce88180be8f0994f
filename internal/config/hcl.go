package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"

	"parcel-rate/core/criteria"
	"parcel-rate/core/zone"
	rerrors "parcel-rate/internal/errors"
)

// hclFile mirrors Config for .hcl files. Every block and attribute is
// optional; only what the file sets is merged over the defaults.
type hclFile struct {
	Version   *string       `hcl:"version,optional"`
	Reference *hclReference `hcl:"reference,block"`
	Engine    *hclEngine    `hcl:"engine,block"`
	RateTable *hclRateTable `hcl:"rate_table,block"`
	Input     *hclInput     `hcl:"input,block"`
	Output    *hclOutput    `hcl:"output,block"`
	Criteria  *hclCriteria  `hcl:"criteria,block"`
	Storage   *hclStorage   `hcl:"storage,block"`
	Logging   *hclLogging   `hcl:"logging,block"`
}

type hclReference struct {
	Path       *string    `hcl:"path,optional"`
	Format     *string    `hcl:"format,optional"`
	ZoneMatrix *string    `hcl:"zone_matrix,optional"`
	Sheets     *hclSheets `hcl:"sheets,block"`
}

type hclSheets struct {
	ZoneMatrix *string `hcl:"zone_matrix,optional"`
	Surcharges *string `hcl:"surcharges,optional"`
	Rates      *string `hcl:"rates,optional"`
	Criteria   *string `hcl:"criteria,optional"`
}

type hclEngine struct {
	ZoneStrategy  *string `hcl:"zone_strategy,optional"`
	ZoneCacheSize *int    `hcl:"zone_cache_size,optional"`
	Workers       *int    `hcl:"workers,optional"`
}

type hclRateTable struct {
	MarkupPercent *float64 `hcl:"markup_percent,optional"`
	MinMargin     *float64 `hcl:"min_margin,optional"`
}

type hclInput struct {
	WeightUnit *string           `hcl:"weight_unit,optional"`
	Mapping    map[string]string `hcl:"mapping,optional"`
}

type hclOutput struct {
	DefaultFormat *string `hcl:"default_format,optional"`
	MaxRows       *int    `hcl:"max_rows,optional"`
	NoColor       *bool   `hcl:"no_color,optional"`
	Verbose       *bool   `hcl:"verbose,optional"`
}

type hclCriteria struct {
	OriginZIP           *string            `hcl:"origin_zip,optional"`
	DimDivisor          *float64           `hcl:"dim_divisor,optional"`
	FuelPercentage      *float64           `hcl:"fuel_surcharge_percentage,optional"`
	FuelFraction        *float64           `hcl:"fuel_surcharge,optional"`
	DAS                 *float64           `hcl:"das_surcharge,optional"`
	EDAS                *float64           `hcl:"edas_surcharge,optional"`
	Remote              *float64           `hcl:"remote_surcharge,optional"`
	MarkupPercentage    *float64           `hcl:"markup_percentage,optional"`
	ServiceLevelMarkups map[string]float64 `hcl:"service_level_markups,optional"`
}

type hclStorage struct {
	Backend *string `hcl:"backend,optional"`
	Path    *string `hcl:"path,optional"`
}

type hclLogging struct {
	Level       *string `hcl:"level,optional"`
	Format      *string `hcl:"format,optional"`
	Output      *string `hcl:"output,optional"`
	Development *bool   `hcl:"development,optional"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func decodeHCL(path string, data []byte, c *Config) error {
	var f hclFile
	if err := hclsimple.Decode(path, data, nil, &f); err != nil {
		return rerrors.Config("failed to parse config", err).WithContext("path", path)
	}

	set(&c.Version, f.Version)

	if r := f.Reference; r != nil {
		set(&c.Reference.Path, r.Path)
		set(&c.Reference.Format, r.Format)
		set(&c.Reference.ZoneMatrix, r.ZoneMatrix)
		if s := r.Sheets; s != nil {
			set(&c.Reference.Sheets.ZoneMatrix, s.ZoneMatrix)
			set(&c.Reference.Sheets.Surcharges, s.Surcharges)
			set(&c.Reference.Sheets.Rates, s.Rates)
			set(&c.Reference.Sheets.Criteria, s.Criteria)
		}
	}

	if e := f.Engine; e != nil {
		if e.ZoneStrategy != nil {
			c.Engine.ZoneStrategy = zone.Strategy(*e.ZoneStrategy)
		}
		set(&c.Engine.ZoneCacheSize, e.ZoneCacheSize)
		set(&c.Engine.Workers, e.Workers)
	}

	if rt := f.RateTable; rt != nil {
		set(&c.RateTable.MarkupPercent, rt.MarkupPercent)
		set(&c.RateTable.MinMargin, rt.MinMargin)
	}

	if in := f.Input; in != nil {
		set(&c.Input.WeightUnit, in.WeightUnit)
		if in.Mapping != nil {
			c.Input.Mapping = in.Mapping
		}
	}

	if o := f.Output; o != nil {
		set(&c.Output.DefaultFormat, o.DefaultFormat)
		set(&c.Output.MaxRows, o.MaxRows)
		set(&c.Output.NoColor, o.NoColor)
		set(&c.Output.Verbose, o.Verbose)
	}

	if cr := f.Criteria; cr != nil {
		c.Criteria = cr.updates()
	}

	if s := f.Storage; s != nil {
		set(&c.Storage.Backend, s.Backend)
		set(&c.Storage.Path, s.Path)
	}

	if l := f.Logging; l != nil {
		set(&c.Logging.Level, l.Level)
		set(&c.Logging.Format, l.Format)
		set(&c.Logging.Output, l.Output)
		set(&c.Logging.Development, l.Development)
	}

	return nil
}

// updates converts the block into a criteria update map
func (cr *hclCriteria) updates() map[string]any {
	out := make(map[string]any)
	if cr.OriginZIP != nil {
		out[criteria.KeyOriginZIP] = *cr.OriginZIP
	}
	for key, v := range map[string]*float64{
		criteria.KeyDimDivisor:       cr.DimDivisor,
		criteria.KeyFuelPercentage:   cr.FuelPercentage,
		criteria.KeyFuelFraction:     cr.FuelFraction,
		criteria.KeyDAS:              cr.DAS,
		criteria.KeyEDAS:             cr.EDAS,
		criteria.KeyRemote:           cr.Remote,
		criteria.KeyMarkupPercentage: cr.MarkupPercentage,
	} {
		if v != nil {
			out[key] = *v
		}
	}
	if len(cr.ServiceLevelMarkups) > 0 {
		markups := make(map[string]any, len(cr.ServiceLevelMarkups))
		for level, pct := range cr.ServiceLevelMarkups {
			markups[level] = pct
		}
		out[criteria.KeyServiceLevelMarkups] = markups
	}
	return out
}
