
package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

const DefaultTCMBURL = "https://www.tcmb.gov.tr/kurlar/today.xml"

type tcmbDoc struct {
	Date       string         `xml:"Date,attr"`
	Currencies []tcmbCurrency `xml:"Currency"`
}

type tcmbCurrency struct {
	Code         string `xml:"CurrencyCode,attr"`
	ForexBuying  string `xml:"ForexBuying"`
	ForexSelling string `xml:"ForexSelling"`
}

func fetchTCMB(ctx context.Context, client *http.Client, url string) (tcmbDoc, error) {
	var doc tcmbDoc
	body, err := HTTPGet(ctx, client, url, nil)
	if err != nil {
		return doc, err
	}
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return doc, fmt.Errorf("tcmb decode: %w (%s)", err, snippet(body))
	}
	return doc, nil
}

func (d tcmbDoc) find(code string) (tcmbCurrency, bool) {
	for _, c := range d.Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return tcmbCurrency{}, false
}

// Hakan combines the central bank's forex rates with truncgil gram gold,
// since the XML carries no gold.
type Hakan struct {
	client      *http.Client
	tcmbURL     string
	truncgilURL string
	log         *logger.Logger
}

func NewHakan(client *http.Client, tcmbURL, truncgilURL string, log *logger.Logger) *Hakan {
	if tcmbURL == "" {
		tcmbURL = DefaultTCMBURL
	}
	if truncgilURL == "" {
		truncgilURL = DefaultTruncgilURL
	}
	return &Hakan{client: client, tcmbURL: tcmbURL, truncgilURL: truncgilURL, log: log}
}

func (h *Hakan) Name() SourceName { return SourceHakan }

func (h *Hakan) Fetch(ctx context.Context) (currency.Quotes, error) {
	doc, err := fetchTCMB(ctx, h.client, h.tcmbURL)
	if err != nil {
		return nil, err
	}

	quotes := currency.Quotes{}
	for _, code := range []currency.Code{currency.USD, currency.EUR, currency.GBP, currency.CHF} {
		var buy, sell float64
		if c, ok := doc.find(string(code)); ok {
			buy, _ = utils.ParsePrice(c.ForexBuying)
			sell, _ = utils.ParsePrice(c.ForexSelling)
		}
		quotes[code] = currency.NewQuote(code, buy, sell)
	}

	quotes[currency.XAU] = currency.Quote{}
	gold, err := fetchTruncgil(ctx, h.client, h.truncgilURL)
	if err != nil {
		h.log.Warn("hakanDoviz gold leg: %v", err)
		return quotes, nil
	}
	if gram, ok := truncgilGram(gold); ok {
		quotes[currency.XAU] = gram
	}
	return quotes, nil
}

// TCMBRates looks up the central bank USD selling rate. It backs the gold
// comparison when the regional page carries no usable USD/TRY.
type TCMBRates struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

func NewTCMBRates(client *http.Client, url string, timeout time.Duration) *TCMBRates {
	if url == "" {
		url = DefaultTCMBURL
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TCMBRates{client: client, url: url, timeout: timeout}
}

func (t *TCMBRates) USDTRY(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	doc, err := fetchTCMB(ctx, t.client, t.url)
	if err != nil {
		return 0, err
	}
	c, ok := doc.find("USD")
	if !ok {
		return 0, fmt.Errorf("tcmb: USD missing")
	}
	v, ok := utils.ParsePrice(c.ForexSelling)
	if !ok || v <= 0 {
		return 0, fmt.Errorf("tcmb: bad USD ForexSelling %q", c.ForexSelling)
	}
	return v, nil
}
