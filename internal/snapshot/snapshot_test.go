package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/comparison"
	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/goldprice"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/sources"
)

type fakeCollector struct {
	calls   atomic.Int32
	results []sources.Result
}

func (f *fakeCollector) Collect(context.Context) []sources.Result {
	f.calls.Add(1)
	return f.results
}

type MockComparer struct{ mock.Mock }

func (m *MockComparer) Compare(ctx context.Context, averages currency.Quotes) (*comparison.GoldComparison, error) {
	args := m.Called(ctx, averages)
	gc, _ := args.Get(0).(*comparison.GoldComparison)
	return gc, args.Error(1)
}

type MockWorld struct{ mock.Mock }

func (m *MockWorld) Resolve(ctx context.Context, force bool) (goldprice.WorldGoldPrice, error) {
	args := m.Called(ctx, force)
	return args.Get(0).(goldprice.WorldGoldPrice), args.Error(1)
}

func goodResults() []sources.Result {
	return []sources.Result{
		{Source: sources.SourceAhlatci, Quotes: currency.Quotes{currency.USD: currency.NewQuote(currency.USD, 41.2, 41.4)}},
		{Source: sources.SourceHarem, Err: errors.New("http 503: busy")},
		{Source: sources.SourceHakan, Quotes: currency.Quotes{currency.USD: currency.NewQuote(currency.USD, 41.4, 41.6)}},
		{Source: sources.SourceCarsi, Err: errors.New("timeout")},
	}
}

func newService(c Collector, cmp Comparer, now *time.Time) *Service {
	clock := func() time.Time { return *now }
	slot := cache.New[*Snapshot]("snapshot", DefaultTTL, cache.WithClock[*Snapshot](clock))
	s := NewService(c, cmp, nil, slot, Config{}, logger.Nop())
	s.now = clock
	return s
}

func TestGetBuildsSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	gc := &comparison.GoldComparison{Difference: comparison.Difference{Status: comparison.StatusCheaper}}
	cmp := &MockComparer{}
	cmp.On("Compare", mock.Anything, mock.Anything).Return(gc, nil)

	s := newService(&fakeCollector{results: goodResults()}, cmp, &now)
	snap, err := s.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Available())
	assert.Empty(t, snap.Sources[sources.SourceHarem])
	assert.Equal(t, "41.3000", currency.Fixed(currency.USD, snap.Averages[currency.USD].Buy))
	assert.Equal(t, sources.SourceHakan, snap.BestRates[currency.USD].BestBuy)
	assert.Equal(t, sources.SourceAhlatci, snap.BestRates[currency.USD].BestSell)
	assert.Same(t, gc, snap.GoldComparison)
	assert.Equal(t, now, snap.LastUpdate)
	assert.Equal(t, currency.Codes(), snap.Currencies)

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, map[string]any{}, out["sources"].(map[string]any)["haremAltin"])
	assert.Equal(t, "Dolar", out["names"].(map[string]any)["USD"])
}

func TestGetServesSamePointerWhileFresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	col := &fakeCollector{results: goodResults()}
	s := newService(col, nil, &now)

	first, err := s.Get(context.Background())
	require.NoError(t, err)
	now = now.Add(5 * time.Minute)
	second, err := s.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, col.calls.Load())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Same(t, first, latest)

	now = now.Add(6 * time.Minute)
	third, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.NotEqual(t, first.CycleID, third.CycleID)
}

func TestAllSourcesDownKeepsPreviousSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	col := &fakeCollector{results: goodResults()}
	s := newService(col, nil, &now)

	first, err := s.Get(context.Background())
	require.NoError(t, err)

	col.results = []sources.Result{{Source: sources.SourceAhlatci, Err: errors.New("down")}}
	now = now.Add(time.Hour)

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)

	got, err = s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoSourceData)
	assert.ErrorIs(t, err, cache.ErrStale)
	assert.Same(t, first, got)
}

func TestAllSourcesDownWithoutSnapshot(t *testing.T) {
	now := time.Now()
	col := &fakeCollector{results: []sources.Result{{Source: sources.SourceAhlatci, Err: errors.New("down")}}}
	s := newService(col, nil, &now)

	snap, err := s.Get(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrNoSourceData)
}

func TestComparisonFailureIsRecordedAsNull(t *testing.T) {
	now := time.Now()
	cmp := &MockComparer{}
	cmp.On("Compare", mock.Anything, mock.Anything).Return(nil, comparison.ErrNoDomesticPrice)

	snap, err := newService(&fakeCollector{results: goodResults()}, cmp, &now).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.GoldComparison)

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"goldComparison":null`)
}

func TestSubscribersSeeEachNewSnapshotOnce(t *testing.T) {
	now := time.Now()
	s := newService(&fakeCollector{results: goodResults()}, nil, &now)

	var seen []*Snapshot
	s.Subscribe(func(snap *Snapshot) { seen = append(seen, snap) })

	a, err := s.Get(context.Background())
	require.NoError(t, err)
	_, err = s.Get(context.Background())
	require.NoError(t, err)
	b, err := s.Refresh(context.Background())
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Same(t, a, seen[0])
	assert.Same(t, b, seen[1])
}

func TestRefreshWorldGoldForces(t *testing.T) {
	world := &MockWorld{}
	world.On("Resolve", mock.Anything, true).Return(goldprice.WorldGoldPrice{XAUUSDPrice: 2650, Source: "goldapi.io"}, nil).Once()
	world.On("Resolve", mock.Anything, true).Return(goldprice.WorldGoldPrice{}, goldprice.ErrNoWorldPrice).Once()

	slot := cache.New[*Snapshot]("snapshot", DefaultTTL)
	s := NewService(&fakeCollector{}, nil, world, slot, Config{}, logger.Nop())

	require.NoError(t, s.RefreshWorldGold(context.Background()))
	assert.ErrorIs(t, s.RefreshWorldGold(context.Background()), goldprice.ErrNoWorldPrice)
	world.AssertExpectations(t)
}

type delayedAdapter struct {
	name  sources.SourceName
	delay time.Duration
}

func (a delayedAdapter) Name() sources.SourceName { return a.name }

func (a delayedAdapter) Fetch(ctx context.Context) (currency.Quotes, error) {
	select {
	case <-time.After(a.delay):
		return currency.Quotes{currency.USD: currency.NewQuote(currency.USD, 41.2, 41.4)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCancelledCallerDoesNotTruncateCycle(t *testing.T) {
	reg := sources.NewRegistry(time.Second, logger.Nop(),
		delayedAdapter{name: sources.SourceAhlatci, delay: 10 * time.Millisecond},
		delayedAdapter{name: sources.SourceHarem, delay: 200 * time.Millisecond},
	)
	s := NewService(reg, nil, nil, cache.New[*Snapshot]("snapshot", DefaultTTL), Config{}, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	first, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Available())
	assert.NotEmpty(t, first.Sources[sources.SourceHarem])

	second, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCycleTimeoutBoundsRefresh(t *testing.T) {
	reg := sources.NewRegistry(10*time.Second, logger.Nop(),
		delayedAdapter{name: sources.SourceAhlatci, delay: 5 * time.Second},
	)
	s := NewService(reg, nil, nil, cache.New[*Snapshot]("snapshot", DefaultTTL),
		Config{CycleTimeout: 50 * time.Millisecond}, logger.Nop())

	start := time.Now()
	_, err := s.Get(context.Background())
	require.ErrorIs(t, err, ErrNoSourceData)
	assert.Less(t, time.Since(start), 2*time.Second)
}
