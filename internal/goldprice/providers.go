
package goldprice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Armin-kho/doviz-board/internal/sources"
)

// AhlatciXAU reads the London XAUUSD bid from the shared Ahlatcı feed.
type AhlatciXAU struct {
	feed *sources.AhlatciFeed
}

func NewAhlatciXAU(feed *sources.AhlatciFeed) *AhlatciXAU { return &AhlatciXAU{feed: feed} }

func (a *AhlatciXAU) Name() string { return "Ahlatcı (Londra XAUUSD)" }

func (a *AhlatciXAU) Fetch(ctx context.Context) (float64, error) {
	rows, err := a.feed.Rows(ctx)
	if err != nil {
		return 0, err
	}
	row := rows.Find("XAUUSD")
	if row == nil {
		return 0, errors.New("XAUUSD row missing")
	}
	v, ok := sources.ToFloat(row["Al"])
	if !ok {
		return 0, fmt.Errorf("bad XAUUSD Al %v", row["Al"])
	}
	return v, nil
}

// MetalPriceAPI queries metalpriceapi.com /v1/latest with base XAU.
type MetalPriceAPI struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewMetalPriceAPI(client *http.Client, baseURL, apiKey string) *MetalPriceAPI {
	if baseURL == "" {
		baseURL = "https://api.metalpriceapi.com"
	}
	return &MetalPriceAPI{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (m *MetalPriceAPI) Name() string { return "metalpriceapi.com" }

func (m *MetalPriceAPI) Fetch(ctx context.Context) (float64, error) {
	q := url.Values{"api_key": {m.apiKey}, "base": {"XAU"}, "currencies": {"USD"}}
	return fetchRate(ctx, m.client, m.baseURL+"/v1/latest?"+q.Encode(), nil, "USD")
}

// GoldAPI queries goldapi.io /api/XAU/USD.
type GoldAPI struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewGoldAPI(client *http.Client, baseURL, token string) *GoldAPI {
	if baseURL == "" {
		baseURL = "https://www.goldapi.io"
	}
	return &GoldAPI{client: client, baseURL: baseURL, token: token}
}

func (g *GoldAPI) Name() string { return "goldapi.io" }

func (g *GoldAPI) Fetch(ctx context.Context) (float64, error) {
	h := http.Header{}
	h.Set("x-access-token", g.token)
	body, err := sources.HTTPGet(ctx, g.client, g.baseURL+"/api/XAU/USD", h)
	if err != nil {
		return 0, err
	}
	var doc map[string]any
	if err := sources.DecodeJSON(body, &doc, "goldapi"); err != nil {
		return 0, err
	}
	v, ok := sources.ToFloat(doc["price"])
	if !ok {
		return 0, errors.New("price missing")
	}
	return v, nil
}

// MetalsAPI queries metals-api.com /api/latest with base USD.
type MetalsAPI struct {
	client    *http.Client
	baseURL   string
	accessKey string
}

func NewMetalsAPI(client *http.Client, baseURL, accessKey string) *MetalsAPI {
	if baseURL == "" {
		baseURL = "https://metals-api.com"
	}
	if accessKey == "" {
		accessKey = "demo"
	}
	return &MetalsAPI{client: client, baseURL: baseURL, accessKey: accessKey}
}

func (m *MetalsAPI) Name() string { return "metals-api.com" }

func (m *MetalsAPI) Fetch(ctx context.Context) (float64, error) {
	q := url.Values{"access_key": {m.accessKey}, "base": {"USD"}, "symbols": {"XAU"}}
	return fetchRate(ctx, m.client, m.baseURL+"/api/latest?"+q.Encode(), nil, "XAU")
}

// Manual serves an operator-set price, see cmd/goldprice.
type Manual struct {
	price float64
}

func NewManual(price float64) *Manual { return &Manual{price: price} }

func (m *Manual) Name() string { return "Manuel" }

func (m *Manual) Fetch(context.Context) (float64, error) {
	if m.price <= 0 {
		return 0, errors.New("manual price not set")
	}
	return m.price, nil
}

// fetchRate reads rates[symbol] from a metals rate API and normalizes it to
// USD per ounce. These APIs quote either USD per XAU or XAU per USD depending
// on the base; a gold price is never below 1 and its inverse never above.
func fetchRate(ctx context.Context, client *http.Client, u string, h http.Header, symbol string) (float64, error) {
	body, err := sources.HTTPGet(ctx, client, u, h)
	if err != nil {
		return 0, err
	}
	var doc struct {
		Rates map[string]any `json:"rates"`
		Error any            `json:"error"`
	}
	if err := sources.DecodeJSON(body, &doc, "rates"); err != nil {
		return 0, err
	}
	v, ok := sources.ToFloat(doc.Rates[symbol])
	if !ok || v <= 0 {
		if doc.Error != nil {
			return 0, fmt.Errorf("api error: %v", doc.Error)
		}
		return 0, fmt.Errorf("rates.%s missing", symbol)
	}
	if v < 1 {
		v = 1 / v
	}
	return v, nil
}

// ChainConfig selects which providers take part in the chain.
type ChainConfig struct {
	MetalPriceAPIKey string
	GoldAPIToken     string
	MetalsAPIKey     string
	ManualPrice      float64
}

// Chain builds the provider order: Ahlatcı, metalpriceapi, goldapi,
// metals-api, manual. Keyed providers without a key are left out; metals-api
// falls back to its demo key.
func Chain(client *http.Client, feed *sources.AhlatciFeed, cfg ChainConfig) []Provider {
	out := []Provider{NewAhlatciXAU(feed)}
	if cfg.MetalPriceAPIKey != "" {
		out = append(out, NewMetalPriceAPI(client, "", cfg.MetalPriceAPIKey))
	}
	if cfg.GoldAPIToken != "" {
		out = append(out, NewGoldAPI(client, "", cfg.GoldAPIToken))
	}
	out = append(out, NewMetalsAPI(client, "", cfg.MetalsAPIKey))
	if cfg.ManualPrice > 0 {
		out = append(out, NewManual(cfg.ManualPrice))
	}
	return out
}
