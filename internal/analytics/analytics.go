// Package analytics keeps rolling statistics of fix attempts: counters per
// category, per strategy and per category and strategy pair, plus a capped
// list of recent attempts. The snapshot is loaded on construction and
// persisted after every write.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/mender/internal/models"
)

const snapshotVersion = 1

// MinAttemptsForBest is the sample size a strategy needs before BestStrategy
// considers it.
const MinAttemptsForBest = 3

// Config tunes an Analytics instance.
type Config struct {
	RecentSize int    // capacity of the recent-attempts ring
	Key        string // storage key of the snapshot
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{RecentSize: 100, Key: "fix-analytics"}
}

// Record is one fix attempt.
type Record struct {
	ID        string             `json:"id"`
	Signature string             `json:"signature"`
	Category  models.Category    `json:"category"`
	Strategy  models.FixStrategy `json:"strategy,omitempty"`
	FixType   string             `json:"fix_type,omitempty"`
	Success   bool               `json:"success"`
	Duration  time.Duration      `json:"duration"`
	Timestamp time.Time          `json:"timestamp"`
}

// Counter aggregates attempts.
type Counter struct {
	Attempts      int           `json:"attempts"`
	Successes     int           `json:"successes"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Rate returns the success ratio, 0 when nothing was recorded.
func (c Counter) Rate() float64 {
	if c.Attempts == 0 {
		return 0
	}
	return float64(c.Successes) / float64(c.Attempts)
}

// AverageDuration returns the mean attempt duration.
func (c Counter) AverageDuration() time.Duration {
	if c.Attempts == 0 {
		return 0
	}
	return c.TotalDuration / time.Duration(c.Attempts)
}

func (c *Counter) add(r Record) {
	c.Attempts++
	if r.Success {
		c.Successes++
	}
	c.TotalDuration += r.Duration
}

type snapshot struct {
	Version    int                                                 `json:"version"`
	Categories map[models.Category]*Counter                        `json:"categories"`
	Strategies map[models.FixStrategy]*Counter                     `json:"strategies"`
	Matrix     map[models.Category]map[models.FixStrategy]*Counter `json:"matrix"`
	Recent     []Record                                            `json:"recent"`
	UpdatedAt  time.Time                                           `json:"updated_at"`
}

func newSnapshot() *snapshot {
	return &snapshot{
		Version:    snapshotVersion,
		Categories: make(map[models.Category]*Counter),
		Strategies: make(map[models.FixStrategy]*Counter),
		Matrix:     make(map[models.Category]map[models.FixStrategy]*Counter),
	}
}

// Analytics is safe for concurrent use.
type Analytics struct {
	persist sync.Mutex // held across update and Save so snapshots land in order
	mu      sync.Mutex
	cfg     Config
	storage Storage
	snap    *snapshot
	now     func() time.Time
}

// New loads the persisted snapshot from storage. A missing snapshot starts
// empty; an unreadable one is an error.
func New(ctx context.Context, storage Storage, cfg Config) (*Analytics, error) {
	d := DefaultConfig()
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = d.RecentSize
	}
	if cfg.Key == "" {
		cfg.Key = d.Key
	}
	if storage == nil {
		storage = NewMemoryStorage()
	}

	a := &Analytics{cfg: cfg, storage: storage, snap: newSnapshot(), now: time.Now}

	data, err := storage.Load(ctx, cfg.Key)
	if errors.Is(err, ErrNotFound) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load analytics: %w", err)
	}

	loaded := newSnapshot()
	if err := json.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("decode analytics snapshot: %w", err)
	}
	if loaded.Categories == nil {
		loaded.Categories = make(map[models.Category]*Counter)
	}
	if loaded.Strategies == nil {
		loaded.Strategies = make(map[models.FixStrategy]*Counter)
	}
	if loaded.Matrix == nil {
		loaded.Matrix = make(map[models.Category]map[models.FixStrategy]*Counter)
	}
	if over := len(loaded.Recent) - cfg.RecentSize; over > 0 {
		loaded.Recent = loaded.Recent[over:]
	}
	a.snap = loaded
	return a, nil
}

// Record adds one attempt and persists the snapshot. The in-memory counters
// are updated even when persisting fails.
func (a *Analytics) Record(ctx context.Context, r Record) error {
	a.persist.Lock()
	defer a.persist.Unlock()

	a.mu.Lock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = a.now()
	}
	if r.Category == "" {
		r.Category = models.CategoryUnknown
	}

	s := a.snap
	counter(s.Categories, r.Category).add(r)
	if r.Strategy != "" {
		counter(s.Strategies, r.Strategy).add(r)
		row, ok := s.Matrix[r.Category]
		if !ok {
			row = make(map[models.FixStrategy]*Counter)
			s.Matrix[r.Category] = row
		}
		counter(row, r.Strategy).add(r)
	}
	s.Recent = append(s.Recent, r)
	if over := len(s.Recent) - a.cfg.RecentSize; over > 0 {
		s.Recent = append(s.Recent[:0:0], s.Recent[over:]...)
	}
	s.UpdatedAt = r.Timestamp

	data, err := json.Marshal(s)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode analytics snapshot: %w", err)
	}

	if err := a.storage.Save(ctx, a.cfg.Key, data); err != nil {
		return fmt.Errorf("persist analytics: %w", err)
	}
	if app, ok := a.storage.(Appender); ok {
		if err := app.Append(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func counter[K comparable](m map[K]*Counter, k K) *Counter {
	c, ok := m[k]
	if !ok {
		c = &Counter{}
		m[k] = c
	}
	return c
}

// SuccessRate returns the success ratio recorded for a category.
func (a *Analytics) SuccessRate(category models.Category) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.snap.Categories[category]; ok {
		return c.Rate()
	}
	return 0
}

// StrategyStat is the counter of one strategy.
type StrategyStat struct {
	Strategy models.FixStrategy
	Counter
}

// CategoryStat is the counter of one category.
type CategoryStat struct {
	Category models.Category
	Counter
}

// StrategyStats returns the counters of every strategy that has been
// recorded, in canonical strategy order.
func (a *Analytics) StrategyStats() []StrategyStat {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strategyStats(a.snap.Strategies)
}

// CategoryStrategyStats is StrategyStats restricted to one category.
func (a *Analytics) CategoryStrategyStats(category models.Category) []StrategyStat {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strategyStats(a.snap.Matrix[category])
}

func strategyStats(m map[models.FixStrategy]*Counter) []StrategyStat {
	var out []StrategyStat
	for _, s := range models.AllStrategies {
		if c, ok := m[s]; ok {
			out = append(out, StrategyStat{Strategy: s, Counter: *c})
		}
	}
	return out
}

// CategoryStats returns the counters of every recorded category in
// declaration order.
func (a *Analytics) CategoryStats() []CategoryStat {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []CategoryStat
	for _, cat := range models.AllCategories {
		if c, ok := a.snap.Categories[cat]; ok {
			out = append(out, CategoryStat{Category: cat, Counter: *c})
		}
	}
	return out
}

// BestStrategy returns the strategy with the highest success rate for the
// category among those with at least MinAttemptsForBest attempts. Ties go to
// the strategy that comes first in canonical order.
func (a *Analytics) BestStrategy(category models.Category) (models.FixStrategy, bool) {
	var (
		best     models.FixStrategy
		bestRate = -1.0
	)
	for _, st := range a.CategoryStrategyStats(category) {
		if st.Attempts < MinAttemptsForBest {
			continue
		}
		if r := st.Rate(); r > bestRate {
			best, bestRate = st.Strategy, r
		}
	}
	return best, bestRate >= 0
}

// Recent returns the recent attempts, newest first.
func (a *Analytics) Recent() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.snap.Recent))
	for i, r := range a.snap.Recent {
		out[len(out)-1-i] = r
	}
	return out
}

// Summary aggregates everything recorded.
type Summary struct {
	TotalAttempts int
	Successes     int
	SuccessRate   float64
	Categories    []CategoryStat
	Strategies    []StrategyStat
	TopCategories []CategoryStat // most attempted first
	UpdatedAt     time.Time
}

// Summary returns totals plus per-category and per-strategy counters.
func (a *Analytics) Summary() Summary {
	cats := a.CategoryStats()
	sum := Summary{
		Categories: cats,
		Strategies: a.StrategyStats(),
	}
	for _, c := range cats {
		sum.TotalAttempts += c.Attempts
		sum.Successes += c.Successes
	}
	if sum.TotalAttempts > 0 {
		sum.SuccessRate = float64(sum.Successes) / float64(sum.TotalAttempts)
	}

	sum.TopCategories = append([]CategoryStat(nil), cats...)
	sort.SliceStable(sum.TopCategories, func(i, j int) bool {
		return sum.TopCategories[i].Attempts > sum.TopCategories[j].Attempts
	})

	a.mu.Lock()
	sum.UpdatedAt = a.snap.UpdatedAt
	a.mu.Unlock()
	return sum
}
