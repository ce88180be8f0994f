// Package storage archives priced batches so runs can be listed, reloaded
// and compared against each other.
// Supports file and in-memory backends.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"parcel-rate/core/criteria"
	"parcel-rate/core/engine"
	"parcel-rate/core/types"
	rerrors "parcel-rate/internal/errors"
)

// Backend is a storage backend type
type Backend string

const (
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// Store is the run archive interface
type Store interface {
	// Save stores a run
	Save(ctx context.Context, run *StoredRun) error

	// Get retrieves a run by ID
	Get(ctx context.Context, id string) (*StoredRun, error)

	// List lists runs newest first
	List(ctx context.Context, filter *ListFilter) ([]*StoredRun, error)

	// Delete removes a run
	Delete(ctx context.Context, id string) error

	// GetLatest gets the latest run for a source
	GetLatest(ctx context.Context, source string) (*StoredRun, error)

	// Compare compares two runs
	Compare(ctx context.Context, oldID, newID string) (*CompareResult, error)

	// Close closes the store
	Close() error
}

// StoredRun is one archived batch
type StoredRun struct {
	// ID is the batch run ID
	ID string `json:"id"`

	// Source groups runs, usually the shipment file name
	Source string `json:"source"`

	// Fingerprint of the reference data used
	Fingerprint string `json:"reference_fingerprint"`

	Criteria criteria.Criteria `json:"criteria"`
	Summary  engine.Summary    `json:"summary"`

	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`

	Metadata map[string]string `json:"metadata,omitempty"`

	// Results are omitted by List
	Results []types.PricedShipment `json:"results,omitempty"`
}

// NewStoredRun captures a batch for archiving
func NewStoredRun(batch *engine.Batch, source string) *StoredRun {
	return &StoredRun{
		ID:          batch.RunID,
		Source:      source,
		Fingerprint: batch.Fingerprint,
		Criteria:    batch.Criteria,
		Summary:     engine.Summarize(batch.Results),
		CreatedAt:   batch.StartedAt,
		Duration:    batch.Duration,
		Results:     batch.Results,
	}
}

// header returns the run without its per-shipment results
func (r *StoredRun) header() *StoredRun {
	h := *r
	h.Results = nil
	return &h
}

// ListFilter filters run listing
type ListFilter struct {
	Source      string
	Fingerprint string
	Since       time.Time
	Until       time.Time
	Limit       int
	Offset      int
}

func (f *ListFilter) match(r *StoredRun) bool {
	if f == nil {
		return true
	}
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Fingerprint != "" && !strings.HasPrefix(r.Fingerprint, f.Fingerprint) {
		return false
	}
	if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

func (f *ListFilter) page(runs []*StoredRun) []*StoredRun {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if f == nil {
		return runs
	}
	if f.Offset > 0 {
		if f.Offset >= len(runs) {
			return nil
		}
		runs = runs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(runs) {
		runs = runs[:f.Limit]
	}
	return runs
}

// CompareResult is a comparison between two runs
type CompareResult struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`

	OldTotal     decimal.Decimal     `json:"old_total"`
	NewTotal     decimal.Decimal     `json:"new_total"`
	Delta        decimal.Decimal     `json:"delta"`
	DeltaPercent decimal.NullDecimal `json:"delta_percent"`

	OldSavings decimal.Decimal `json:"old_savings"`
	NewSavings decimal.Decimal `json:"new_savings"`

	// SameReference is true when both runs priced against the same data
	SameReference bool `json:"same_reference"`

	// Changed lists shipments present in both runs whose final rate differs
	Changed []ShipmentDelta `json:"changed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ShipmentDelta is the change of one shipment's final rate between runs
type ShipmentDelta struct {
	ShipmentID string              `json:"shipment_id"`
	Old        decimal.NullDecimal `json:"old"`
	New        decimal.NullDecimal `json:"new"`
}

func compare(oldRun, newRun *StoredRun) *CompareResult {
	delta := newRun.Summary.TotalFinal.Sub(oldRun.Summary.TotalFinal)
	res := &CompareResult{
		OldID:         oldRun.ID,
		NewID:         newRun.ID,
		OldTotal:      oldRun.Summary.TotalFinal,
		NewTotal:      newRun.Summary.TotalFinal,
		Delta:         delta,
		OldSavings:    oldRun.Summary.TotalSavings,
		NewSavings:    newRun.Summary.TotalSavings,
		SameReference: oldRun.Fingerprint == newRun.Fingerprint,
		CreatedAt:     time.Now(),
	}
	if oldRun.Summary.TotalFinal.IsPositive() {
		res.DeltaPercent = types.Some(types.Round2(delta.Div(oldRun.Summary.TotalFinal).Mul(decimal.NewFromInt(100))))
	}

	before := make(map[string]decimal.NullDecimal, len(oldRun.Results))
	for _, r := range oldRun.Results {
		before[r.ShipmentID] = r.FinalRate
	}
	for _, r := range newRun.Results {
		old, ok := before[r.ShipmentID]
		if !ok {
			continue
		}
		if old.Valid != r.FinalRate.Valid || !old.Decimal.Equal(r.FinalRate.Decimal) {
			res.Changed = append(res.Changed, ShipmentDelta{ShipmentID: r.ShipmentID, Old: old, New: r.FinalRate})
		}
	}
	return res
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sourceDir maps a source name to a directory name
func sourceDir(source string) string {
	s := unsafeChars.ReplaceAllString(filepath.Base(source), "_")
	if s == "" || s == "." || s == "_" {
		return "default"
	}
	return s
}

// FileStore is a file-based storage backend. Runs are written to
// <base>/<source>/<id>.json.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore creates a file store
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, rerrors.Config("failed to create storage directory", err).WithContext("path", basePath)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) Save(ctx context.Context, run *StoredRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	dir := filepath.Join(s.basePath, sourceDir(run.Source))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create source directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, run.ID+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	return nil
}

// find returns the file holding run id
func (s *FileStore) find(id string) (string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return "", fmt.Errorf("failed to read storage: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.basePath, entry.Name(), id+".json")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", rerrors.NotFound("run", id)
}

func readRun(path string) (*StoredRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run StoredRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, rerrors.Parsing("failed to unmarshal run", err).WithContext("path", path)
	}
	return &run, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*StoredRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return readRun(path)
}

func (s *FileStore) List(ctx context.Context, filter *ListFilter) ([]*StoredRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*StoredRun
	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		run, err := readRun(path)
		if err != nil {
			return nil
		}
		if filter.match(run) {
			runs = append(runs, run.header())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return filter.page(runs), nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *FileStore) GetLatest(ctx context.Context, source string) (*StoredRun, error) {
	runs, err := s.List(ctx, &ListFilter{Source: source, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, rerrors.NotFound("run for source", source)
	}
	return s.Get(ctx, runs[0].ID)
}

func (s *FileStore) Compare(ctx context.Context, oldID, newID string) (*CompareResult, error) {
	oldRun, err := s.Get(ctx, oldID)
	if err != nil {
		return nil, fmt.Errorf("failed to get old run: %w", err)
	}
	newRun, err := s.Get(ctx, newID)
	if err != nil {
		return nil, fmt.Errorf("failed to get new run: %w", err)
	}
	return compare(oldRun, newRun), nil
}

func (s *FileStore) Close() error {
	return nil
}

// MemoryStore is an in-memory storage backend
type MemoryStore struct {
	runs map[string]*StoredRun
	mu   sync.RWMutex
}

// NewMemoryStore creates a memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*StoredRun),
	}
}

func (s *MemoryStore) Save(ctx context.Context, run *StoredRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*StoredRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, rerrors.NotFound("run", id)
	}
	return run, nil
}

func (s *MemoryStore) List(ctx context.Context, filter *ListFilter) ([]*StoredRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*StoredRun
	for _, run := range s.runs {
		if filter.match(run) {
			runs = append(runs, run.header())
		}
	}
	return filter.page(runs), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	return nil
}

func (s *MemoryStore) GetLatest(ctx context.Context, source string) (*StoredRun, error) {
	runs, err := s.List(ctx, &ListFilter{Source: source, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, rerrors.NotFound("run for source", source)
	}
	return s.Get(ctx, runs[0].ID)
}

func (s *MemoryStore) Compare(ctx context.Context, oldID, newID string) (*CompareResult, error) {
	oldRun, err := s.Get(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newRun, err := s.Get(ctx, newID)
	if err != nil {
		return nil, err
	}
	return compare(oldRun, newRun), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// StoreFactory creates stores by backend type
func StoreFactory(backend Backend, config map[string]string) (Store, error) {
	switch backend {
	case BackendFile, "":
		path := config["path"]
		if path == "" {
			path = ".parcel-rate/runs"
		}
		fs, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, rerrors.Config(fmt.Sprintf("unsupported storage backend: %s", backend), nil)
	}
}

// Ensure interfaces are implemented
var (
	_ Store     = (*FileStore)(nil)
	_ Store     = (*MemoryStore)(nil)
	_ io.Closer = (*FileStore)(nil)
)
