// Package engine provides the API-primary rate engine.
// CLI is a thin wrapper around this engine.
package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parcel-rate/core/criteria"
	"parcel-rate/core/rates"
	"parcel-rate/core/reference"
	"parcel-rate/core/surcharge"
	"parcel-rate/core/types"
	"parcel-rate/core/zip"
	"parcel-rate/core/zone"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// Config configures the rate engine
type Config struct {
	// ZoneStrategy selects the zone resolver (matrix, simple)
	ZoneStrategy zone.Strategy `json:"zone_strategy"`

	// ZoneCacheSize bounds the zone resolution cache; 0 disables it
	ZoneCacheSize int `json:"zone_cache_size"`

	// Workers is the number of shipments priced concurrently in a batch
	Workers int `json:"workers"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ZoneStrategy:  zone.StrategyMatrix,
		ZoneCacheSize: zone.DefaultCacheSize,
		Workers:       1,
	}
}

// Option customizes an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithResolver replaces the configured zone resolver
func WithResolver(r zone.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
		e.fixedResolver = true
	}
}

// WithCriteria starts the engine from c instead of the dataset criteria
func WithCriteria(c criteria.Criteria) Option {
	return func(e *Engine) {
		e.criteria = c.Clone()
	}
}

// Engine prices shipments against one reference dataset. Criteria may be
// updated while the engine is shared; every batch prices against the
// criteria snapshot taken when it started.
type Engine struct {
	store *reference.Store
	rates *rates.Lookup
	cfg   Config
	log   *zap.Logger

	mu            sync.RWMutex
	criteria      criteria.Criteria
	resolver      zone.Resolver
	fixedResolver bool
}

// New creates an engine over a loaded reference dataset
func New(store *reference.Store, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, rerrors.ReferenceData("reference data is required", nil)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	e := &Engine{
		store:    store,
		rates:    rates.NewLookup(store.Rates),
		cfg:      cfg,
		criteria: store.Criteria.Clone(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDefault(e.log, "engine")

	if e.resolver == nil {
		r, err := e.buildResolver(e.criteria.OriginZIP)
		if err != nil {
			return nil, err
		}
		e.resolver = r
	}

	e.log.Debug("engine ready",
		zap.String("reference", store.ShortFingerprint()),
		zap.String("zone_strategy", string(cfg.ZoneStrategy)),
		zap.Int("workers", cfg.Workers))
	return e, nil
}

func (e *Engine) buildResolver(originZIP string) (zone.Resolver, error) {
	return zone.New(e.cfg.ZoneStrategy, e.store, originZIP, e.cfg.ZoneCacheSize, e.log.Named("zone"))
}

// Store returns the reference dataset the engine prices against
func (e *Engine) Store() *reference.Store {
	return e.store
}

// Criteria returns a copy of the live criteria
func (e *Engine) Criteria() criteria.Criteria {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.criteria.Clone()
}

// ResolveZone resolves a pair with the live resolver
func (e *Engine) ResolveZone(origin, dest string) zone.Resolution {
	e.mu.RLock()
	r := e.resolver
	e.mu.RUnlock()
	return r.Explain(origin, dest)
}

// UpdateCriteria merges partial into the live criteria. Invalid values keep
// their previous setting and unknown keys are ignored; see criteria.Apply.
func (e *Engine) UpdateCriteria(partial map[string]any) criteria.UpdateReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, report := e.criteria.Apply(partial, e.log.Named("criteria"))
	e.swapCriteria(next)
	return report
}

// WithUpdatedCriteria returns a new engine over the same reference data
// with partial applied. The receiver is left unchanged.
func (e *Engine) WithUpdatedCriteria(partial map[string]any) (*Engine, criteria.UpdateReport) {
	e.mu.RLock()
	next, report := e.criteria.Apply(partial, e.log.Named("criteria"))
	clone := &Engine{
		store:         e.store,
		rates:         e.rates,
		cfg:           e.cfg,
		log:           e.log,
		criteria:      e.criteria,
		resolver:      e.resolver,
		fixedResolver: e.fixedResolver,
	}
	e.mu.RUnlock()

	clone.swapCriteria(next)
	return clone, report
}

// swapCriteria installs next and rebuilds the resolver when the fallback
// origin changed. Callers hold the write lock or own the engine.
func (e *Engine) swapCriteria(next criteria.Criteria) {
	if next.OriginZIP != e.criteria.OriginZIP && !e.fixedResolver {
		r, err := e.buildResolver(next.OriginZIP)
		if err != nil {
			e.log.Warn("keeping previous zone resolver", zap.Error(err))
		} else {
			e.resolver = r
		}
	}
	e.criteria = next
}

// snapshot captures everything one pricing run reads
func (e *Engine) snapshot() *pricer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c := e.criteria.Clone()
	return &pricer{
		criteria: c,
		resolver: e.resolver,
		rates:    e.rates,
		selector: surcharge.NewSelector(e.store.Eligibility, c, e.log.Named("surcharge")),
		log:      e.log,
	}
}

// PriceShipment prices a single shipment
func (e *Engine) PriceShipment(ctx context.Context, s types.Shipment) types.PricedShipment {
	return e.snapshot().price(ctx, 0, s)
}

// Batch is the result of one PriceShipments run
type Batch struct {
	RunID       string                 `json:"run_id"`
	StartedAt   time.Time              `json:"started_at"`
	Duration    time.Duration          `json:"duration"`
	Fingerprint string                 `json:"reference_fingerprint"`
	Criteria    criteria.Criteria      `json:"criteria"`
	Results     []types.PricedShipment `json:"results"`
}

// Failed returns the results that were not fully priced
func (b *Batch) Failed() []types.PricedShipment {
	var out []types.PricedShipment
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// PriceShipments prices every shipment independently. The batch always
// holds exactly one result per input, in input order. A cancelled context
// marks the shipments not yet priced as failed and is returned as the error.
func (e *Engine) PriceShipments(ctx context.Context, shipments []types.Shipment) (*Batch, error) {
	p := e.snapshot()
	batch := &Batch{
		RunID:       uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Fingerprint: e.store.Fingerprint(),
		Criteria:    p.criteria,
		Results:     make([]types.PricedShipment, len(shipments)),
	}
	p.log = e.log.With(zap.String("run_id", batch.RunID))

	start := time.Now()

	if e.cfg.Workers <= 1 {
		for i, s := range shipments {
			batch.Results[i] = p.price(ctx, i, s)
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(e.cfg.Workers)
		for i, s := range shipments {
			i, s := i, s
			g.Go(func() error {
				batch.Results[i] = p.price(ctx, i, s)
				return nil
			})
		}
		_ = g.Wait()
	}

	batch.Duration = time.Since(start)

	failed := len(batch.Failed())
	p.log.Info("batch priced",
		zap.Int("shipments", len(shipments)),
		zap.Int("failed", failed),
		zap.Duration("duration", batch.Duration),
		zap.String("reference", e.store.ShortFingerprint()))

	return batch, ctx.Err()
}

// pricer runs the per-shipment pipeline against one criteria snapshot
type pricer struct {
	criteria criteria.Criteria
	resolver zone.Resolver
	rates    *rates.Lookup
	selector *surcharge.Selector
	log      *zap.Logger
}

func (p *pricer) price(ctx context.Context, index int, s types.Shipment) (out types.PricedShipment) {
	out = identity(index, s)

	defer func() {
		if rec := recover(); rec != nil {
			out = identity(index, s)
			p.fail(&out, types.StageValidate, rerrors.Calculation("unexpected pricing failure", fmt.Errorf("%v", rec)))
		}
	}()

	if err := ctx.Err(); err != nil {
		p.fail(&out, types.StageValidate, rerrors.Calculation("batch cancelled", err))
		return out
	}

	// 1. validate
	if missing := missingFields(s); len(missing) > 0 {
		p.fail(&out, types.StageValidate,
			rerrors.Calculation("missing required fields: "+strings.Join(missing, ", "), nil))
		return out
	}

	divisor := p.criteria.DimDivisor
	out.DimensionalWeight = s.DimensionalWeight(divisor)
	out.BillableWeight = s.RatingWeight(divisor)

	// 2. zone
	if zip.IsInternational(s.DestinationZIP) {
		out.Zone = reference.DefaultZone
	} else {
		out.Zone = p.resolver.Resolve(s.OriginZIP, s.DestinationZIP)
	}

	// 3. base rate
	base, err := p.rates.BaseRate(out.BillableWeight, out.Zone, s.PackageType)
	if err != nil {
		p.fail(&out, types.StageBaseRate, err)
		return out
	}
	out.BaseRate = types.Some(base)

	// 4. surcharges
	sr := p.selector.Select(base, s.DestinationZIP, out.BillableWeight, s.PackageType)
	out.FuelSurcharge = types.Some(sr.Fuel)
	out.DASSurcharge = types.Some(sr.DAS)
	out.EDASSurcharge = types.Some(sr.EDAS)
	out.RemoteSurcharge = types.Some(sr.Remote)
	out.TotalSurcharges = types.Some(sr.Total)

	// 5. markup
	markup, _ := p.criteria.MarkupFor(s.ServiceLevel)
	withSurcharges := base.Add(sr.Total)
	final := types.Round2(types.ApplyMarkup(withSurcharges, markup))
	out.MarkupPercentage = types.Some(markup)
	out.MarkupAmount = types.Some(final.Sub(withSurcharges))
	out.FinalRate = types.Some(final)

	// 6. margin
	if s.CarrierRate.Valid && s.CarrierRate.Decimal.IsPositive() {
		carrier := s.CarrierRate.Decimal
		savings := types.Round2(carrier.Sub(final))
		out.Savings = types.Some(savings)
		out.SavingsPercent = types.Some(types.Round2(savings.Div(carrier).Mul(decimal.NewFromInt(100))))
	}

	return out
}

func (p *pricer) fail(out *types.PricedShipment, stage types.Stage, err error) {
	out.StageErrors = append(out.StageErrors, types.StageError{Stage: stage, Err: err})
	out.Errors = types.JoinStageErrors(out.StageErrors)
	p.log.Warn("shipment not priced",
		zap.String("shipment_id", out.ShipmentID),
		zap.String("stage", string(stage)),
		zap.Int("zone", out.Zone),
		zap.Error(err))
}

// identity copies the input fields every result carries, priced or not
func identity(index int, s types.Shipment) types.PricedShipment {
	id := strings.TrimSpace(s.ShipmentID)
	if id == "" {
		id = "row-" + strconv.Itoa(index+1)
	}
	return types.PricedShipment{
		ShipmentID:     id,
		OriginZIP:      s.OriginZIP,
		DestinationZIP: s.DestinationZIP,
		PackageType:    s.PackageType,
		ServiceLevel:   s.ServiceLevel,
		Weight:         s.Weight,
		CarrierRate:    s.CarrierRate,
	}
}

func missingFields(s types.Shipment) []string {
	var missing []string
	if strings.TrimSpace(s.OriginZIP) == "" {
		missing = append(missing, "origin_zip")
	}
	if strings.TrimSpace(s.DestinationZIP) == "" {
		missing = append(missing, "destination_zip")
	}
	if !usableWeight(s.Weight) && (s.BillableWeight == nil || !usableWeight(*s.BillableWeight)) {
		missing = append(missing, "weight")
	}
	return missing
}

func usableWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}
