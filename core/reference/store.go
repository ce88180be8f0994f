// Package reference holds the immutable-per-run lookup tables the rate
// engine prices against: the zone matrix, surcharge eligibility sets and
// the base rate table.
package reference

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"parcel-rate/core/criteria"
)

// DefaultZone is returned for any pair the matrix cannot resolve
const DefaultZone = 8

// ValidZone reports whether z is a zone 1..8
func ValidZone(z int) bool {
	return z >= 1 && z <= 8
}

// ZoneMatrix maps (origin prefix, destination prefix) to a zone. It is
// sparse: a destination column can exist without a value for every origin.
type ZoneMatrix struct {
	origins       []string // load order
	sortedOrigins []string
	destinations  []string // sorted
	destSet       map[string]struct{}
	cells         map[string]map[string]int
}

func newZoneMatrix() *ZoneMatrix {
	return &ZoneMatrix{
		destSet: make(map[string]struct{}),
		cells:   make(map[string]map[string]int),
	}
}

func (m *ZoneMatrix) addOrigin(o string) {
	if _, ok := m.cells[o]; ok {
		return
	}
	m.cells[o] = make(map[string]int)
	m.origins = append(m.origins, o)
}

func (m *ZoneMatrix) addDestination(d string) {
	if _, ok := m.destSet[d]; ok {
		return
	}
	m.destSet[d] = struct{}{}
	m.destinations = append(m.destinations, d)
}

func (m *ZoneMatrix) set(o, d string, zone int) {
	m.addOrigin(o)
	m.addDestination(d)
	m.cells[o][d] = zone
}

func (m *ZoneMatrix) seal() {
	m.sortedOrigins = append([]string(nil), m.origins...)
	sort.Strings(m.sortedOrigins)
	sort.Strings(m.destinations)
}

// HasOrigin reports whether o is a known origin row
func (m *ZoneMatrix) HasOrigin(o string) bool {
	_, ok := m.cells[o]
	return ok
}

// HasDestination reports whether d is a known destination column
func (m *ZoneMatrix) HasDestination(d string) bool {
	_, ok := m.destSet[d]
	return ok
}

// Cell returns the stored zone for a pair, if defined
func (m *ZoneMatrix) Cell(o, d string) (int, bool) {
	row, ok := m.cells[o]
	if !ok {
		return 0, false
	}
	z, ok := row[d]
	return z, ok
}

// OriginWithPrefix finds a known origin that starts with p
func (m *ZoneMatrix) OriginWithPrefix(p string) (string, bool) {
	return searchPrefix(m.sortedOrigins, p)
}

// DestinationWithPrefix finds a known destination that starts with p
func (m *ZoneMatrix) DestinationWithPrefix(p string) (string, bool) {
	return searchPrefix(m.destinations, p)
}

// FirstOrigin returns the first origin row in load order
func (m *ZoneMatrix) FirstOrigin() (string, bool) {
	if len(m.origins) == 0 {
		return "", false
	}
	return m.origins[0], true
}

// Origins returns the origin rows in load order
func (m *ZoneMatrix) Origins() []string {
	return append([]string(nil), m.origins...)
}

// Destinations returns the destination columns, sorted
func (m *ZoneMatrix) Destinations() []string {
	return append([]string(nil), m.destinations...)
}

// FillRatio is the share of origin × destination cells holding a zone
func (m *ZoneMatrix) FillRatio() float64 {
	total := len(m.origins) * len(m.destinations)
	if total == 0 {
		return 0
	}
	defined := lo.SumBy(lo.Values(m.cells), func(row map[string]int) int { return len(row) })
	return float64(defined) / float64(total)
}

// searchPrefix is a binary search over sorted keys for the first key that
// starts with p.
func searchPrefix(sorted []string, p string) (string, bool) {
	if len(p) < 2 {
		return "", false
	}
	i := sort.SearchStrings(sorted, p)
	if i < len(sorted) && strings.HasPrefix(sorted[i], p) {
		return sorted[i], true
	}
	return "", false
}

// SurchargeFlags is the eligibility of one 5-digit ZIP
type SurchargeFlags struct {
	DAS    bool `json:"das"`
	EDAS   bool `json:"edas"`
	Remote bool `json:"remote"`
}

// Count returns how many categories are flagged
func (f SurchargeFlags) Count() int {
	return lo.Count([]bool{f.DAS, f.EDAS, f.Remote}, true)
}

// Eligibility maps 5-digit ZIPs to their surcharge flags. A ZIP flagged in
// several categories is kept as-is; priority is resolved at lookup time.
type Eligibility struct {
	flags map[string]SurchargeFlags
}

// Flags returns the flags of a 5-digit ZIP
func (e *Eligibility) Flags(zip5 string) SurchargeFlags {
	return e.flags[zip5]
}

// IsDAS reports DAS eligibility
func (e *Eligibility) IsDAS(zip5 string) bool { return e.flags[zip5].DAS }

// IsEDAS reports EDAS eligibility
func (e *Eligibility) IsEDAS(zip5 string) bool { return e.flags[zip5].EDAS }

// IsRemote reports Remote eligibility
func (e *Eligibility) IsRemote(zip5 string) bool { return e.flags[zip5].Remote }

// Len returns the number of ZIPs listed
func (e *Eligibility) Len() int { return len(e.flags) }

// EligibilityStats summarizes the eligibility sets
type EligibilityStats struct {
	Total        int      `json:"total"`
	DAS          int      `json:"das"`
	EDAS         int      `json:"edas"`
	Remote       int      `json:"remote"`
	MultiFlagged []string `json:"multi_flagged,omitempty"`
}

// Stats counts eligible ZIPs per category and lists multi-flagged ZIPs
func (e *Eligibility) Stats() EligibilityStats {
	s := EligibilityStats{Total: len(e.flags)}
	for zip, f := range e.flags {
		if f.DAS {
			s.DAS++
		}
		if f.EDAS {
			s.EDAS++
		}
		if f.Remote {
			s.Remote++
		}
		if f.Count() > 1 {
			s.MultiFlagged = append(s.MultiFlagged, zip)
		}
	}
	sort.Strings(s.MultiFlagged)
	return s
}

// Category selects a block of rows in the rate table
type Category string

const (
	CategoryLetter Category = "Letters"
	CategoryParcel Category = "Pkg"
)

// RateRow is one weight break of a category
type RateRow struct {
	Category Category                `json:"category"`
	RateType string                  `json:"rate_type,omitempty"`
	Weight   float64                 `json:"weight"`
	Rates    map[int]decimal.Decimal `json:"rates"`
}

// RateTable holds base rates by category, zone and weight break
type RateTable struct {
	rows  map[Category][]RateRow
	zones map[int]struct{}
}

// Rows returns a category's rows ordered by ascending weight break
func (t *RateTable) Rows(c Category) []RateRow {
	return t.rows[c]
}

// HasZone reports whether the table has a column for zone z
func (t *RateTable) HasZone(z int) bool {
	_, ok := t.zones[z]
	return ok
}

// Zones returns the zone columns present, ascending
func (t *RateTable) Zones() []int {
	zs := lo.Keys(t.zones)
	sort.Ints(zs)
	return zs
}

// Store is one loaded reference dataset. It is read-only after Build.
type Store struct {
	Zones       *ZoneMatrix
	Eligibility *Eligibility
	Rates       *RateTable

	// Criteria is the configuration read from the dataset
	Criteria criteria.Criteria

	fingerprint string
}

// Fingerprint is a SHA-256 over the canonical content of the lookup tables
func (s *Store) Fingerprint() string {
	return s.fingerprint
}

// ShortFingerprint returns the first 12 hex characters of the fingerprint
func (s *Store) ShortFingerprint() string {
	if len(s.fingerprint) < 12 {
		return s.fingerprint
	}
	return s.fingerprint[:12]
}

func (s *Store) computeFingerprint() string {
	h := sha256.New()

	fmt.Fprintln(h, "zones")
	for _, o := range s.Zones.sortedOrigins {
		for _, d := range s.Zones.destinations {
			if z, ok := s.Zones.cells[o][d]; ok {
				fmt.Fprintf(h, "%s:%s=%d\n", o, d, z)
			}
		}
	}

	fmt.Fprintln(h, "eligibility")
	zips := lo.Keys(s.Eligibility.flags)
	sort.Strings(zips)
	for _, z := range zips {
		f := s.Eligibility.flags[z]
		fmt.Fprintf(h, "%s=%t,%t,%t\n", z, f.DAS, f.EDAS, f.Remote)
	}

	fmt.Fprintln(h, "rates")
	cats := lo.Keys(s.Rates.rows)
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	for _, c := range cats {
		for _, r := range s.Rates.rows[c] {
			fmt.Fprintf(h, "%s|%g", c, r.Weight)
			for _, z := range s.Rates.Zones() {
				if d, ok := r.Rates[z]; ok {
					fmt.Fprintf(h, "|%d=%s", z, d.String())
				}
			}
			fmt.Fprintln(h)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
