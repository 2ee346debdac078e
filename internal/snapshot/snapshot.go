
package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Armin-kho/doviz-board/internal/aggregate"
	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/comparison"
	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/goldprice"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/sources"
)

const (
	DefaultTTL = 10 * time.Minute
	// DefaultCycleTimeout bounds one refresh cycle, whoever triggered it.
	DefaultCycleTimeout = 2 * time.Minute
)

// ErrNoSourceData means every adapter failed in a cycle.
var ErrNoSourceData = errors.New("snapshot: no source returned data")

// Snapshot is one refresh cycle's aggregate. It is never mutated after
// being built; a refresh replaces it.
type Snapshot struct {
	CycleID        uuid.UUID                              `json:"cycleId"`
	LastUpdate     time.Time                              `json:"lastUpdate"`
	Sources        map[sources.SourceName]currency.Quotes `json:"sources"`
	Currencies     []currency.Code                        `json:"currencies"`
	Names          map[currency.Code]string               `json:"names"`
	Icons          map[currency.Code]string               `json:"icons"`
	Averages       currency.Quotes                        `json:"averages"`
	BestRates      map[currency.Code]aggregate.Best       `json:"bestRates"`
	GoldComparison *comparison.GoldComparison             `json:"goldComparison"`
}

// Available counts sources that returned data.
func (s *Snapshot) Available() int {
	n := 0
	for _, qs := range s.Sources {
		if len(qs) > 0 {
			n++
		}
	}
	return n
}

type Collector interface {
	Collect(ctx context.Context) []sources.Result
}

type Comparer interface {
	Compare(ctx context.Context, averages currency.Quotes) (*comparison.GoldComparison, error)
}

type WorldRefresher interface {
	Resolve(ctx context.Context, force bool) (goldprice.WorldGoldPrice, error)
}

type Config struct {
	Codes       []currency.Code
	TrustedGold []sources.SourceName
	// CycleTimeout bounds a refresh cycle. Cycles ignore the caller's
	// cancellation so a dropped request cannot cut one short.
	CycleTimeout time.Duration
}

// Service owns the snapshot cache and runs refresh cycles.
type Service struct {
	collector Collector
	comparer  Comparer
	world     WorldRefresher
	slot      *cache.Slot[*Snapshot]
	cfg       Config
	log       *logger.Logger
	now       func() time.Time

	mu        sync.Mutex
	subs      []func(*Snapshot)
	published *Snapshot
}

func NewService(collector Collector, comparer Comparer, world WorldRefresher, slot *cache.Slot[*Snapshot], cfg Config, log *logger.Logger) *Service {
	if len(cfg.Codes) == 0 {
		cfg.Codes = currency.Codes()
	}
	if cfg.TrustedGold == nil {
		cfg.TrustedGold = aggregate.DefaultTrustedGold
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	return &Service{
		collector: collector,
		comparer:  comparer,
		world:     world,
		slot:      slot,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Subscribe registers fn to receive every newly built snapshot. Listeners
// run on the refreshing goroutine and must not block.
func (s *Service) Subscribe(fn func(*Snapshot)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Get returns the cached snapshot while fresh and refreshes otherwise. A
// failed refresh falls back to the previous snapshot; the error is returned
// only when no snapshot was ever built.
func (s *Service) Get(ctx context.Context) (*Snapshot, error) {
	snap, err := s.slot.GetOrRefresh(ctx, s.build)
	if err != nil {
		if errors.Is(err, cache.ErrStale) {
			s.log.Warn("serving previous snapshot: %v", err)
			return snap, nil
		}
		return nil, err
	}
	s.publish(snap)
	return snap, nil
}

// Refresh rebuilds the snapshot regardless of its age. On failure it returns
// the previous snapshot, if any, together with the error.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := s.slot.ForceRefresh(ctx, s.build)
	if err != nil {
		if errors.Is(err, cache.ErrStale) {
			return snap, err
		}
		return nil, err
	}
	s.publish(snap)
	return snap, nil
}

// Latest returns the cached snapshot without refreshing, whatever its age.
func (s *Service) Latest() (*Snapshot, bool) {
	e, ok := s.slot.Peek()
	return e.Value, ok
}

// RefreshWorldGold force-refreshes the world gold price used by the next
// comparison.
func (s *Service) RefreshWorldGold(ctx context.Context) error {
	if s.world == nil {
		return nil
	}
	wp, err := s.world.Resolve(ctx, true)
	if err != nil {
		return err
	}
	s.log.Info("world gold $%d/oz (%s)", wp.XAUUSDPrice, wp.Source)
	return nil
}

func (s *Service) build(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CycleTimeout)
	defer cancel()

	results := s.collector.Collect(ctx)

	srcs := make(map[sources.SourceName]currency.Quotes, len(results))
	ok := 0
	for _, r := range results {
		if !r.Available() {
			srcs[r.Source] = currency.Quotes{}
			continue
		}
		srcs[r.Source] = r.Quotes
		ok++
	}
	if ok == 0 {
		return nil, ErrNoSourceData
	}

	avgs := aggregate.Averages(results, s.cfg.Codes, s.cfg.TrustedGold)
	snap := &Snapshot{
		CycleID:    uuid.New(),
		LastUpdate: s.now().UTC(),
		Sources:    srcs,
		Currencies: s.cfg.Codes,
		Names:      currency.Names(),
		Icons:      currency.Icons(),
		Averages:   avgs,
		BestRates:  aggregate.BestRates(results, s.cfg.Codes),
	}

	if s.comparer != nil {
		gc, err := s.comparer.Compare(ctx, avgs)
		if err != nil {
			s.log.Warn("gold comparison: %v", err)
		}
		snap.GoldComparison = gc
	}

	s.log.Info("cycle %s: %d/%d sources", snap.CycleID, ok, len(results))
	return snap, nil
}

func (s *Service) publish(snap *Snapshot) {
	s.mu.Lock()
	if snap == nil || snap == s.published {
		s.mu.Unlock()
		return
	}
	s.published = snap
	subs := append([]func(*Snapshot){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
