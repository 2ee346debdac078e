package regional

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/logger"
)

type fakePage struct {
	texts    map[string]string
	navErr   error
	hang     bool
	waitHang bool
	closed   bool
	navURL   string
	waitedID string
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.navURL = url
	if p.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.navErr
}

func (p *fakePage) WaitPopulated(ctx context.Context, id string) error {
	p.waitedID = id
	if p.waitHang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) TextByID(ctx context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		out[id] = p.texts[id]
	}
	return out, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page  *fakePage
	opts  PageOptions
	opens int
}

func (b *fakeBrowser) Open(ctx context.Context, opts PageOptions) (Page, error) {
	b.opens++
	b.opts = opts
	return b.page, nil
}

func newFetcher(b Browser, now func() time.Time) *Fetcher {
	cfg := DefaultConfig()
	cfg.NavigateTimeout = 50 * time.Millisecond
	cfg.WaitTimeout = 50 * time.Millisecond
	slot := cache.New[RegionalGoldQuote]("regional", DefaultTTL, cache.WithClock[RegionalGoldQuote](now))
	return NewFetcher(b, cfg, slot, logger.Nop())
}

func TestFetchParsesLegsAndUSD(t *testing.T) {
	page := &fakePage{texts: map[string]string{
		"span_ask_129": "3.050,00",
		"span_ask_450": "3.040,00",
		"span_ask_113": "-",
		"span_ask_114": "1.234",
		"span_ask_115": "42,1500",
	}}
	b := &fakeBrowser{page: page}
	f := newFetcher(b, time.Now)

	q := f.Fetch(context.Background())
	require.NotNil(t, q)
	assert.Equal(t, 3050.0, q.Istanbul)
	assert.Equal(t, 3040.0, q.London)
	require.NotNil(t, q.USDTRY)
	assert.Equal(t, 42.15, *q.USDTRY)

	assert.Equal(t, "https://www.hakanaltin.com/", page.navURL)
	assert.Equal(t, "span_ask_129", page.waitedID)
	assert.True(t, page.closed)
	assert.ElementsMatch(t, []ResourceKind{ResourceImage, ResourceFont, ResourceMedia}, b.opts.Block)

	_, ok := f.LastUpdate()
	assert.True(t, ok)
}

func TestFetchWithoutUSDCandidate(t *testing.T) {
	page := &fakePage{texts: map[string]string{
		"span_ask_129": "3050.5",
		"span_ask_450": "3040.25",
	}}
	q := newFetcher(&fakeBrowser{page: page}, time.Now).Fetch(context.Background())
	require.NotNil(t, q)
	assert.Nil(t, q.USDTRY)
}

func TestFetchServesCacheWithinTTL(t *testing.T) {
	page := &fakePage{texts: map[string]string{"span_ask_129": "3050", "span_ask_450": "3040"}}
	b := &fakeBrowser{page: page}
	f := newFetcher(b, time.Now)

	require.NotNil(t, f.Fetch(context.Background()))
	require.NotNil(t, f.Fetch(context.Background()))
	assert.Equal(t, 1, b.opens)
}

func TestFetchFallsBackToStaleQuote(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	page := &fakePage{texts: map[string]string{"span_ask_129": "3050", "span_ask_450": "3040"}}
	f := newFetcher(&fakeBrowser{page: page}, clock)

	require.NotNil(t, f.Fetch(context.Background()))

	now = now.Add(DefaultTTL + time.Minute)
	page.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	q := f.Fetch(context.Background())
	require.NotNil(t, q)
	assert.Equal(t, 3050.0, q.Istanbul)
}

func TestFetchNavigationTimeoutWithoutCache(t *testing.T) {
	f := newFetcher(&fakeBrowser{page: &fakePage{hang: true}}, time.Now)
	assert.Nil(t, f.Fetch(context.Background()))

	_, ok := f.LastUpdate()
	assert.False(t, ok)
}

func TestFetchWaitTimeoutServesCachedQuote(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	page := &fakePage{texts: map[string]string{"span_ask_129": "3050", "span_ask_450": "3040"}}
	f := newFetcher(&fakeBrowser{page: page}, clock)

	require.NotNil(t, f.Fetch(context.Background()))

	now = now.Add(DefaultTTL + time.Minute)
	page.waitHang = true

	q := f.Fetch(context.Background())
	require.NotNil(t, q)
	assert.Equal(t, 3050.0, q.Istanbul)
	assert.Equal(t, 3040.0, q.London)
	assert.Equal(t, "span_ask_129", page.waitedID)
}

func TestFetchWaitTimeoutWithoutCache(t *testing.T) {
	page := &fakePage{texts: map[string]string{"span_ask_129": "3050", "span_ask_450": "3040"}, waitHang: true}
	f := newFetcher(&fakeBrowser{page: page}, time.Now)

	assert.Nil(t, f.Fetch(context.Background()))
	assert.True(t, page.closed)

	_, ok := f.LastUpdate()
	assert.False(t, ok)
}

func TestFetchRejectsMissingLegs(t *testing.T) {
	page := &fakePage{texts: map[string]string{"span_ask_129": "3050", "span_ask_450": ""}}
	assert.Nil(t, newFetcher(&fakeBrowser{page: page}, time.Now).Fetch(context.Background()))
}

func TestScanUSDTRY(t *testing.T) {
	ids := []string{"a", "b", "c"}

	v := ScanUSDTRY(map[string]string{"a": "12,5", "b": "40.1234", "c": "41,0000"}, ids)
	require.NotNil(t, v)
	assert.Equal(t, 40.1234, *v)

	// 5.000,0000 strips to 50000000, outside the scaled band.
	assert.Nil(t, ScanUSDTRY(map[string]string{"a": "5.000,0000"}, ids))
	assert.Nil(t, ScanUSDTRY(map[string]string{}, ids))
}
