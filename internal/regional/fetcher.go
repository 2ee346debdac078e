
package regional

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

const DefaultTTL = 10 * time.Minute

// RegionalGoldQuote pairs the Istanbul and London XAU/USD asks (USD per
// ounce) with the USD/TRY rate shown on the same page, when one was found.
type RegionalGoldQuote struct {
	Istanbul float64  `json:"istanbul"`
	London   float64  `json:"london"`
	USDTRY   *float64 `json:"usdTry"`
}

type Config struct {
	URL        string
	IstanbulID string
	LondonID   string
	// USDCandidateIDs are tried in order; the page renumbers its rows from
	// time to time.
	USDCandidateIDs []string
	UserAgent       string
	NavigateTimeout time.Duration
	WaitTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:        "https://www.hakanaltin.com/",
		IstanbulID: "span_ask_129",
		LondonID:   "span_ask_450",
		USDCandidateIDs: []string{
			"span_ask_113", "span_ask_114", "span_ask_115",
			"span_ask_116", "span_ask_117", "span_ask_118",
		},
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		NavigateTimeout: 20 * time.Second,
		WaitTimeout:     8 * time.Second,
	}
}

// Fetcher scrapes the regional quote page through a Browser.
type Fetcher struct {
	browser Browser
	cfg     Config
	slot    *cache.Slot[RegionalGoldQuote]
	log     *logger.Logger
}

func NewFetcher(browser Browser, cfg Config, slot *cache.Slot[RegionalGoldQuote], log *logger.Logger) *Fetcher {
	return &Fetcher{browser: browser, cfg: cfg, slot: slot, log: log}
}

// Fetch returns the regional quote, the cached one when scraping fails, or
// nil when nothing was ever scraped.
func (f *Fetcher) Fetch(ctx context.Context) *RegionalGoldQuote {
	q, err := f.slot.GetOrRefresh(ctx, f.scrape)
	switch {
	case err == nil:
		return &q
	case errors.Is(err, cache.ErrStale):
		f.log.Warn("using cached quote: %v", err)
		return &q
	default:
		f.log.Warn("no quote: %v", err)
		return nil
	}
}

// LastUpdate reports when the cached quote was scraped.
func (f *Fetcher) LastUpdate() (time.Time, bool) {
	e, ok := f.slot.Peek()
	return e.At, ok
}

func (f *Fetcher) scrape(ctx context.Context) (q RegionalGoldQuote, err error) {
	page, err := f.browser.Open(ctx, PageOptions{
		UserAgent: f.cfg.UserAgent,
		Block:     []ResourceKind{ResourceImage, ResourceFont, ResourceMedia},
	})
	if err != nil {
		return q, fmt.Errorf("open: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigateTimeout)
	err = page.Navigate(navCtx, f.cfg.URL)
	cancel()
	if err != nil {
		return q, fmt.Errorf("navigate: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.WaitTimeout)
	err = page.WaitPopulated(waitCtx, f.cfg.IstanbulID)
	cancel()
	if err != nil {
		return q, fmt.Errorf("wait #%s: %w", f.cfg.IstanbulID, err)
	}

	ids := append([]string{f.cfg.IstanbulID, f.cfg.LondonID}, f.cfg.USDCandidateIDs...)
	texts, err := page.TextByID(ctx, ids)
	if err != nil {
		return q, fmt.Errorf("extract: %w", err)
	}

	ist, ok1 := utils.ParsePrice(texts[f.cfg.IstanbulID])
	lon, ok2 := utils.ParsePrice(texts[f.cfg.LondonID])
	if !ok1 || !ok2 || ist <= 0 || lon <= 0 {
		return q, fmt.Errorf("unparsable legs istanbul=%q london=%q", texts[f.cfg.IstanbulID], texts[f.cfg.LondonID])
	}

	q = RegionalGoldQuote{Istanbul: ist, London: lon, USDTRY: ScanUSDTRY(texts, f.cfg.USDCandidateIDs)}
	if q.USDTRY != nil {
		f.log.Info("istanbul $%.2f/oz, london $%.2f/oz, USD/TRY %.4f", ist, lon, *q.USDTRY)
	} else {
		f.log.Info("istanbul $%.2f/oz, london $%.2f/oz, no USD/TRY", ist, lon)
	}
	return q, nil
}

// ScanUSDTRY returns the first candidate whose digits, separators removed,
// fall in utils.ScaledUSDTRYBand ("40,1234" -> 401234), parsed as a price.
func ScanUSDTRY(texts map[string]string, candidates []string) *float64 {
	for _, id := range candidates {
		raw := texts[id]
		scaled, ok := utils.DigitsOnly(raw)
		if !ok || !utils.ScaledUSDTRYBand.ContainsInclusive(scaled) {
			continue
		}
		v, ok := utils.ParsePrice(raw)
		if !ok || !utils.USDTRYBand.Contains(v) {
			continue
		}
		return &v
	}
	return nil
}
