
package sources

import (
	"context"
	"errors"
	"net/http"

	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

const DefaultExchangeRateURL = "https://api.exchangerate-api.com/v4/latest/USD"

// Çarşı spread applied around the mid rate, and the TRY rate assumed when the
// feed omits it.
const (
	carsiBuySpread  = 0.998
	carsiSellSpread = 1.002
	carsiDefaultTRY = 34.5
)

// Carsi derives market-style quotes from a USD-based mid-rate feed and prices
// gram gold from Ahlatcı's XAUUSD.
type Carsi struct {
	client  *http.Client
	url     string
	ahlatci *AhlatciFeed
	log     *logger.Logger
}

func NewCarsi(client *http.Client, url string, ahlatci *AhlatciFeed, log *logger.Logger) *Carsi {
	if url == "" {
		url = DefaultExchangeRateURL
	}
	return &Carsi{client: client, url: url, ahlatci: ahlatci, log: log}
}

func (c *Carsi) Name() SourceName { return SourceCarsi }

func (c *Carsi) Fetch(ctx context.Context) (currency.Quotes, error) {
	body, err := HTTPGet(ctx, c.client, c.url, nil)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := DecodeJSON(body, &doc, "exchangerate"); err != nil {
		return nil, err
	}
	rates := object(doc, "rates")
	if rates == nil {
		return nil, errors.New("exchangerate: missing rates")
	}

	try := field(rates, "TRY")
	if try <= 0 {
		try = carsiDefaultTRY
	}

	quotes := currency.Quotes{
		currency.USD: currency.NewQuote(currency.USD, try*carsiBuySpread, try*carsiSellSpread),
	}
	for _, code := range []currency.Code{currency.EUR, currency.GBP, currency.CHF} {
		per := field(rates, string(code))
		if per <= 0 {
			quotes[code] = currency.Quote{}
			continue
		}
		mid := try / per
		quotes[code] = currency.NewQuote(code, mid*carsiBuySpread, mid*carsiSellSpread)
	}

	quotes[currency.XAU] = currency.Quote{}
	rows, err := c.ahlatci.Rows(ctx)
	if err != nil {
		c.log.Warn("carsiDoviz gold leg: %v", err)
		return quotes, nil
	}
	if xau := rows.Find("XAUUSD"); xau != nil {
		buy := field(xau, "Al") * try / utils.OunceToGram
		sell := field(xau, "St") * try / utils.OunceToGram
		quotes[currency.XAU] = currency.NewQuote(currency.XAU, buy, sell)
	}
	return quotes, nil
}
