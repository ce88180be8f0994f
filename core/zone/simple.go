package zone

import (
	"strconv"

	"go.uber.org/zap"

	"parcel-rate/core/reference"
	"parcel-rate/core/zip"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// prefixRange is an inclusive range of 3-digit prefixes
type prefixRange struct{ lo, hi int }

// offContinent prefixes are always priced at the top zone: Puerto Rico and
// the Virgin Islands, military AP/AE mail, Hawaii, Pacific territories and
// Alaska.
var offContinent = []prefixRange{
	{6, 9},
	{90, 98},
	{340, 340},
	{962, 969},
	{995, 999},
}

// distanceBuckets maps the largest prefix distance to its zone
var distanceBuckets = []struct {
	maxDistance int
	zone        int
}{
	{15, 1},
	{50, 2},
	{100, 3},
	{200, 4},
	{300, 5},
	{450, 6},
	{600, 7},
}

// SimpleResolver approximates zones from the numeric distance between
// 3-digit prefixes. It needs no reference data.
type SimpleResolver struct {
	log *zap.Logger
}

// NewSimpleResolver creates a distance-bucket resolver
func NewSimpleResolver(log *zap.Logger) *SimpleResolver {
	return &SimpleResolver{log: logging.OrDefault(log, "zone")}
}

// Resolve implements Resolver
func (r *SimpleResolver) Resolve(origin, dest string) int {
	return r.Explain(origin, dest).Zone
}

// Explain implements Resolver
func (r *SimpleResolver) Explain(origin, dest string) Resolution {
	var res Resolution

	op, err := zip.Prefix3(origin)
	if err != nil {
		res.Err = rerrors.Wrap(rerrors.TypeZoneLookup, "invalid origin zip", err)
		r.log.Debug("zone defaulted", zap.String("origin", origin), zap.Error(res.Err))
		return res.defaulted("invalid origin zip")
	}
	dp, err := zip.Prefix3(dest)
	if err != nil {
		res.Err = rerrors.Wrap(rerrors.TypeZoneLookup, "invalid destination zip", err)
		r.log.Debug("zone defaulted", zap.String("dest", dest), zap.Error(res.Err))
		return res.defaulted("invalid destination zip")
	}
	res.OriginPrefix, res.DestPrefix = op, dp

	if op == zip.International || dp == zip.International {
		return res.defaulted("international origin or destination")
	}

	o, _ := strconv.Atoi(op)
	d, _ := strconv.Atoi(dp)
	if isOffContinent(o) || isOffContinent(d) {
		return res.defaulted("non-contiguous origin or destination")
	}

	distance := o - d
	if distance < 0 {
		distance = -distance
	}
	res.Zone = reference.DefaultZone
	for _, b := range distanceBuckets {
		if distance <= b.maxDistance {
			res.Zone = b.zone
			break
		}
	}
	res.fallback("prefix distance %d", distance)
	return res
}

func isOffContinent(prefix int) bool {
	for _, r := range offContinent {
		if prefix >= r.lo && prefix <= r.hi {
			return true
		}
	}
	return false
}
