// Package zone resolves an origin/destination ZIP pair to a carrier zone.
// Every resolver returns a zone in 1..8 and never fails outward: internal
// problems degrade to reference.DefaultZone and are logged.
package zone

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parcel-rate/core/reference"
	"parcel-rate/core/zip"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// Resolver maps a ZIP pair to a zone 1..8
type Resolver interface {
	// Resolve never fails; unresolvable pairs get reference.DefaultZone
	Resolve(origin, dest string) int

	// Explain resolves and reports how the zone was reached
	Explain(origin, dest string) Resolution
}

// Strategy selects a resolver implementation
type Strategy string

const (
	// StrategyMatrix looks pairs up in the reference zone matrix
	StrategyMatrix Strategy = "matrix"

	// StrategySimple buckets the numeric distance between 3-digit prefixes
	StrategySimple Strategy = "simple"
)

// Resolution describes one zone resolution
type Resolution struct {
	Zone int `json:"zone"`

	OriginPrefix string `json:"origin_prefix,omitempty"`
	DestPrefix   string `json:"dest_prefix,omitempty"`

	// MatchedOrigin and MatchedDest are the matrix keys actually used
	MatchedOrigin string `json:"matched_origin,omitempty"`
	MatchedDest   string `json:"matched_dest,omitempty"`

	// Fallbacks lists every fallback taken, in order
	Fallbacks []string `json:"fallbacks,omitempty"`

	// Defaulted is set when the zone is the default rather than a lookup
	Defaulted bool `json:"defaulted"`

	// Err is the recoverable problem behind a defaulted zone, if any
	Err error `json:"-"`
}

func (r *Resolution) fallback(format string, args ...any) {
	r.Fallbacks = append(r.Fallbacks, fmt.Sprintf(format, args...))
}

func (r Resolution) defaulted(reason string) Resolution {
	r.Zone = reference.DefaultZone
	r.Defaulted = true
	r.fallback("%s, using zone %d", reason, reference.DefaultZone)
	return r
}

// MatrixResolver resolves zones from the reference zone matrix with
// prefix-matching fallbacks.
type MatrixResolver struct {
	matrix        *reference.ZoneMatrix
	defaultOrigin string
	log           *zap.Logger
}

// NewMatrixResolver creates a matrix resolver. defaultOriginZIP is tried
// when the shipment's origin prefix is not a matrix row.
func NewMatrixResolver(matrix *reference.ZoneMatrix, defaultOriginZIP string, log *zap.Logger) *MatrixResolver {
	return &MatrixResolver{
		matrix:        matrix,
		defaultOrigin: strings.TrimSpace(defaultOriginZIP),
		log:           logging.OrDefault(log, "zone"),
	}
}

// Resolve implements Resolver
func (r *MatrixResolver) Resolve(origin, dest string) int {
	return r.Explain(origin, dest).Zone
}

// Explain implements Resolver
func (r *MatrixResolver) Explain(origin, dest string) (res Resolution) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Resolution{Err: rerrors.ZoneLookup(fmt.Sprint(rec))}.defaulted("zone lookup panicked")
		}
		r.logResolution(origin, dest, res)
	}()
	return r.explain(origin, dest)
}

func (r *MatrixResolver) explain(origin, dest string) Resolution {
	var res Resolution

	op, err := zip.Prefix3(origin)
	if err != nil {
		res.Err = rerrors.Wrap(rerrors.TypeZoneLookup, "invalid origin zip", err)
		return res.defaulted("invalid origin zip")
	}
	dp, err := zip.Prefix3(dest)
	if err != nil {
		res.Err = rerrors.Wrap(rerrors.TypeZoneLookup, "invalid destination zip", err)
		return res.defaulted("invalid destination zip")
	}
	res.OriginPrefix, res.DestPrefix = op, dp

	if op == zip.International || dp == zip.International {
		return res.defaulted("international origin or destination")
	}

	if r.matrix == nil {
		res.Err = rerrors.ZoneLookup("zone matrix not loaded")
		return res.defaulted("no zone matrix")
	}

	destKey := dp
	if !r.matrix.HasDestination(dp) {
		found, ok := r.matrix.DestinationWithPrefix(dp)
		if !ok {
			return res.defaulted(fmt.Sprintf("destination prefix %s not in matrix", dp))
		}
		res.fallback("destination %s matched %s", dp, found)
		destKey = found
	}
	res.MatchedDest = destKey

	originKey, err := r.originKey(op, &res)
	if err != nil {
		res.Err = err
		return res.defaulted("no usable origin row")
	}
	res.MatchedOrigin = originKey

	z, ok := r.matrix.Cell(originKey, destKey)
	if !ok || z <= 0 {
		return res.defaulted(fmt.Sprintf("no zone for %s→%s", originKey, destKey))
	}
	if z > reference.DefaultZone {
		return res.defaulted(fmt.Sprintf("zone %d out of range", z))
	}
	res.Zone = z
	return res
}

func (r *MatrixResolver) originKey(op string, res *Resolution) (string, error) {
	if r.matrix.HasOrigin(op) {
		return op, nil
	}

	if r.defaultOrigin != "" {
		if dop, err := zip.Prefix3(r.defaultOrigin); err == nil && r.matrix.HasOrigin(dop) {
			res.fallback("origin %s replaced by configured origin %s", op, dop)
			return dop, nil
		}
	}

	if found, ok := r.matrix.OriginWithPrefix(op); ok {
		res.fallback("origin %s matched %s", op, found)
		return found, nil
	}

	if first, ok := r.matrix.FirstOrigin(); ok {
		res.fallback("origin %s replaced by first matrix origin %s", op, first)
		return first, nil
	}

	return "", rerrors.ZoneLookup("zone matrix has no origin rows")
}

func (r *MatrixResolver) logResolution(origin, dest string, res Resolution) {
	if res.Err != nil {
		r.log.Warn("zone lookup issue, defaulting",
			zap.String("origin", origin), zap.String("dest", dest),
			zap.Int("zone", res.Zone), zap.Error(res.Err))
		return
	}
	if len(res.Fallbacks) > 0 {
		r.log.Debug("zone resolved with fallback",
			zap.String("origin", origin), zap.String("dest", dest),
			zap.Int("zone", res.Zone), zap.Strings("fallbacks", res.Fallbacks))
	}
}

// New builds the resolver for a strategy. cacheSize > 0 wraps it in an LRU.
func New(strategy Strategy, store *reference.Store, defaultOriginZIP string, cacheSize int, log *zap.Logger) (Resolver, error) {
	var r Resolver
	switch strategy {
	case StrategyMatrix, "":
		if store == nil {
			return nil, rerrors.Config("matrix zone strategy needs reference data", nil)
		}
		r = NewMatrixResolver(store.Zones, defaultOriginZIP, log)
	case StrategySimple:
		r = NewSimpleResolver(log)
	default:
		return nil, rerrors.Config(fmt.Sprintf("unknown zone strategy %q", strategy), nil)
	}

	if cacheSize > 0 {
		return NewCached(r, cacheSize)
	}
	return r, nil
}
