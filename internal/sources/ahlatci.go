
package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

const DefaultAhlatciURL = "https://www.ahlatcidoviz.com.tr/static/currencies.json"

// AhlatciRows is the decoded currencies.json array. Each row carries SMB
// (symbol), Al (buy) and St (sell).
type AhlatciRows []map[string]any

func (rs AhlatciRows) Find(symbol string) map[string]any {
	for _, r := range rs {
		if s, _ := r["SMB"].(string); s == symbol {
			return r
		}
	}
	return nil
}

// AhlatciFeed shares one download of currencies.json between the Ahlatcı
// adapter, the Çarşı gold leg and the world gold provider.
type AhlatciFeed struct {
	client *http.Client
	url    string
	slot   *cache.Slot[AhlatciRows]
}

func NewAhlatciFeed(client *http.Client, url string, ttl time.Duration) *AhlatciFeed {
	if url == "" {
		url = DefaultAhlatciURL
	}
	return &AhlatciFeed{
		client: client,
		url:    url,
		slot:   cache.New[AhlatciRows]("ahlatci-feed", ttl),
	}
}

// Rows returns the feed, fetching it at most once per TTL. A failed fetch is
// an error even when older rows exist.
func (f *AhlatciFeed) Rows(ctx context.Context) (AhlatciRows, error) {
	rows, err := f.slot.GetOrRefresh(ctx, f.download)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *AhlatciFeed) download(ctx context.Context) (AhlatciRows, error) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	body, err := HTTPGet(ctx, f.client, f.url, h)
	if err != nil {
		return nil, err
	}
	var rows AhlatciRows
	if err := DecodeJSON(body, &rows, "ahlatci"); err != nil {
		return nil, err
	}
	return rows, nil
}

type Ahlatci struct {
	feed *AhlatciFeed
}

func NewAhlatci(feed *AhlatciFeed) *Ahlatci {
	return &Ahlatci{feed: feed}
}

func (a *Ahlatci) Name() SourceName { return SourceAhlatci }

func (a *Ahlatci) Fetch(ctx context.Context) (currency.Quotes, error) {
	rows, err := a.feed.Rows(ctx)
	if err != nil {
		return nil, err
	}

	quotes := currency.Quotes{}
	for _, code := range []currency.Code{currency.USD, currency.EUR, currency.GBP, currency.CHF} {
		r := rows.Find(string(code))
		quotes[code] = currency.NewQuote(code, field(r, "Al"), field(r, "St"))
	}
	quotes[currency.XAU] = ahlatciGram(rows)
	return quotes, nil
}

// ahlatciGram prefers the direct XAU-TRY row and otherwise derives gram gold
// from XAUUSD and the feed's own USD quote.
func ahlatciGram(rows AhlatciRows) currency.Quote {
	if r := rows.Find("XAU-TRY"); r != nil {
		buy, sell := field(r, "Al"), field(r, "St")
		if buy > 0 && sell > 0 {
			return currency.NewQuote(currency.XAU, buy, sell)
		}
	}

	xau, usd := rows.Find("XAUUSD"), rows.Find("USD")
	if field(xau, "Al") <= 0 || field(usd, "Al") <= 0 {
		return currency.Quote{}
	}
	buy := field(xau, "Al") * field(usd, "Al") / utils.OunceToGram
	sell := field(xau, "St") * field(usd, "St") / utils.OunceToGram
	return currency.NewQuote(currency.XAU, buy, sell)
}
