
package sources

import (
	"context"
	"errors"
	"net/http"

	"github.com/Armin-kho/doviz-board/internal/currency"
)

const DefaultTruncgilURL = "https://finans.truncgil.com/v4/today.json"

// fetchTruncgil returns the decoded today.json document.
func fetchTruncgil(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	body, err := HTTPGet(ctx, client, url, nil)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := DecodeJSON(body, &doc, "truncgil"); err != nil {
		return nil, err
	}
	return doc, nil
}

// truncgilGram reads gram gold (GRA) from a truncgil document.
func truncgilGram(doc map[string]any) (currency.Quote, bool) {
	gra := object(doc, "GRA")
	if gra == nil {
		return currency.Quote{}, false
	}
	return currency.NewQuote(currency.XAU, field(gra, "Buying"), field(gra, "Selling")), true
}

// Harem reads the truncgil daily feed, which mirrors Harem Altın prices.
type Harem struct {
	client *http.Client
	url    string
}

func NewHarem(client *http.Client, url string) *Harem {
	if url == "" {
		url = DefaultTruncgilURL
	}
	return &Harem{client: client, url: url}
}

func (h *Harem) Name() SourceName { return SourceHarem }

func (h *Harem) Fetch(ctx context.Context) (currency.Quotes, error) {
	doc, err := fetchTruncgil(ctx, h.client, h.url)
	if err != nil {
		return nil, err
	}
	if _, ok := doc["Update_Date"]; !ok {
		return nil, errors.New("truncgil: missing Update_Date")
	}

	quotes := currency.Quotes{}
	for _, code := range []currency.Code{currency.USD, currency.EUR, currency.GBP, currency.CHF} {
		o := object(doc, string(code))
		quotes[code] = currency.NewQuote(code, field(o, "Buying"), field(o, "Selling"))
	}
	gram, _ := truncgilGram(doc)
	quotes[currency.XAU] = gram
	return quotes, nil
}
