
package comparison

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/goldprice"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/regional"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

// ErrNoDomesticPrice means neither the XAU average nor a regional quote gave
// a Turkish gram price.
var ErrNoDomesticPrice = errors.New("comparison: no domestic gold price")

const (
	StatusMoreExpensive = "Türkiye daha pahalı"
	StatusCheaper       = "Türkiye daha ucuz"
)

// Source labels shown next to figures.
const (
	SourceAverage          = "Ortalama"
	SourceRegional         = "Hakan Altın"
	SourceRegionalIstanbul = "Hakan Altın (İstanbul XAU/USD)"
	SourceRegionalLondon   = "Hakan Altın (Londra XAU/USD)"
	SourceTCMB             = "TCMB"
	SourceFallback         = "Fallback"
)

type RegionalSource interface {
	Fetch(ctx context.Context) *regional.RegionalGoldQuote
	LastUpdate() (time.Time, bool)
}

type RateLookup interface {
	USDTRY(ctx context.Context) (float64, error)
}

type WorldSource interface {
	Resolve(ctx context.Context, force bool) (goldprice.WorldGoldPrice, error)
	LastUpdate() (time.Time, bool)
}

type Price struct {
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

type RegionalDifference struct {
	Amount  string `json:"amount"`
	Total   string `json:"total"`
	Unit    string `json:"unit"`
	Formula string `json:"formula"`
}

// RegionalComparison is the Istanbul vs London XAU/USD gap, scaled by
// utils.RegionalOunceMultiplier and converted to TRY.
type RegionalComparison struct {
	London     Price              `json:"london"`
	Istanbul   Price              `json:"istanbul"`
	Difference RegionalDifference `json:"difference"`
	USDTRYRate string             `json:"usdTryRate"`
}

type Turkey struct {
	PerGram  string `json:"perGram"`
	Per1kg   string `json:"per1kg"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
}

type World struct {
	PerGram      string              `json:"perGram"`
	Per1kg       string              `json:"per1kg"`
	Currency     string              `json:"currency"`
	XAUUSDPrice  string              `json:"xauUsdPrice"`
	Source       string              `json:"source"`
	LastUpdate   *time.Time          `json:"lastUpdate"`
	USDTRYRate   string              `json:"usdTryRate"`
	USDTRYSource string              `json:"usdTrySource"`
	Regional     *RegionalComparison `json:"regionalComparison"`
}

// MarshalJSON also writes the regional block under "hakanComparison", the
// key existing frontends read.
func (w World) MarshalJSON() ([]byte, error) {
	type plain World
	return json.Marshal(struct {
		plain
		Legacy *RegionalComparison `json:"hakanComparison"`
	}{plain(w), w.Regional})
}

type Difference struct {
	Amount  string `json:"amount"`
	Percent string `json:"percent"`
	Status  string `json:"status"`
}

type GoldComparison struct {
	Turkey     Turkey     `json:"turkey"`
	World      World      `json:"world"`
	Difference Difference `json:"difference"`
}

var (
	ounce      = decimal.NewFromFloat(utils.OunceToGram)
	regionalOz = decimal.NewFromFloat(utils.RegionalOunceMultiplier)
	kilogram   = decimal.NewFromInt(utils.GramsPerKilogram)
	hundred    = decimal.NewFromInt(100)
)

// Engine compares the Turkish gram gold price with the international one.
// Any of its lookups may be nil.
type Engine struct {
	regional RegionalSource
	rates    RateLookup
	world    WorldSource
	log      *logger.Logger
}

func NewEngine(regional RegionalSource, rates RateLookup, world WorldSource, log *logger.Logger) *Engine {
	return &Engine{regional: regional, rates: rates, world: world, log: log}
}

// Compare builds the comparison from the cycle's averages. A regional quote
// with both legs takes precedence over the averages and the world price.
func (e *Engine) Compare(ctx context.Context, averages currency.Quotes) (*GoldComparison, error) {
	turkeyPerGram := averages[currency.XAU].Sell
	turkeySource := SourceAverage

	rate := averages[currency.USD].Buy
	rateSource := SourceAverage
	if !rate.IsPositive() {
		rate = decimal.NewFromFloat(utils.FallbackUSDTRY)
		rateSource = SourceFallback
	}

	worldPerGram := decimal.Zero
	worldSource := SourceRegionalLondon
	var lastUpdate *time.Time
	var rc *RegionalComparison

	if q := e.regionalQuote(ctx); q != nil {
		rate, rateSource = e.regionalRate(ctx, q)
		ist := decimal.NewFromFloat(q.Istanbul)
		lon := decimal.NewFromFloat(q.London)

		diff := ist.Sub(lon)
		step1 := diff.Mul(regionalOz)
		total := step1.Mul(rate)
		rc = &RegionalComparison{
			London:   Price{Price: lon.StringFixed(2), Currency: "XAU/USD"},
			Istanbul: Price{Price: ist.StringFixed(2), Currency: "XAU/USD"},
			Difference: RegionalDifference{
				Amount: diff.StringFixed(4),
				Total:  total.StringFixed(2),
				Unit:   "USD",
				Formula: fmt.Sprintf("(%s - %s) × %s × %s",
					ist.StringFixed(2), lon.StringFixed(2), regionalOz.String(), rate.StringFixed(4)),
			},
			USDTRYRate: rate.StringFixed(4),
		}
		e.log.Info("istanbul $%s, london $%s, USD/TRY %s (%s): diff $%s/oz x %s = $%s -> %s TRY",
			ist.StringFixed(2), lon.StringFixed(2), rate.StringFixed(4), rateSource,
			diff.StringFixed(4), regionalOz.String(), step1.StringFixed(2), total.StringFixed(2))

		turkeyPerGram = ist.Mul(rate).Div(ounce)
		turkeySource = SourceRegionalIstanbul
		worldPerGram = lon.Mul(rate).Div(ounce)
		worldSource = SourceRegionalLondon
		if at, ok := e.regional.LastUpdate(); ok {
			lastUpdate = &at
		}
	} else if e.world != nil {
		wp, err := e.world.Resolve(ctx, false)
		if err != nil {
			e.log.Warn("world gold price unavailable: %v", err)
		} else {
			worldPerGram = decimal.NewFromInt(wp.XAUUSDPrice).Mul(rate).Div(ounce)
			worldSource = wp.Source
			if at, ok := e.world.LastUpdate(); ok {
				lastUpdate = &at
			}
		}
	}

	if !turkeyPerGram.IsPositive() {
		return nil, ErrNoDomesticPrice
	}

	turkey1kg := turkeyPerGram.Mul(kilogram)
	world1kg := worldPerGram.Mul(kilogram)
	diff := turkey1kg.Sub(world1kg)

	percent := decimal.Zero
	if world1kg.IsPositive() {
		percent = diff.Div(world1kg).Mul(hundred)
	}
	status := StatusCheaper
	if diff.IsPositive() {
		status = StatusMoreExpensive
	}

	return &GoldComparison{
		Turkey: Turkey{
			PerGram:  turkeyPerGram.StringFixed(2),
			Per1kg:   turkey1kg.StringFixed(2),
			Currency: "TRY",
			Source:   turkeySource,
		},
		World: World{
			PerGram:      worldPerGram.StringFixed(2),
			Per1kg:       world1kg.StringFixed(2),
			Currency:     "TRY",
			XAUUSDPrice:  worldPerGram.Mul(ounce).Div(rate).StringFixed(2),
			Source:       worldSource,
			LastUpdate:   lastUpdate,
			USDTRYRate:   rate.StringFixed(4),
			USDTRYSource: rateSource,
			Regional:     rc,
		},
		Difference: Difference{
			Amount:  diff.StringFixed(2),
			Percent: percent.StringFixed(2),
			Status:  status,
		},
	}, nil
}

func (e *Engine) regionalQuote(ctx context.Context) *regional.RegionalGoldQuote {
	if e.regional == nil {
		return nil
	}
	q := e.regional.Fetch(ctx)
	if q == nil || !(q.Istanbul > 0) || !(q.London > 0) {
		return nil
	}
	return q
}

// regionalRate prefers the rate printed next to the regional quote, then
// TCMB, then utils.FallbackUSDTRY.
func (e *Engine) regionalRate(ctx context.Context, q *regional.RegionalGoldQuote) (decimal.Decimal, string) {
	if q.USDTRY != nil && utils.USDTRYBand.Contains(*q.USDTRY) {
		return decimal.NewFromFloat(*q.USDTRY), SourceRegional
	}
	if e.rates != nil {
		v, err := e.rates.USDTRY(ctx)
		if err == nil && v > 0 {
			return decimal.NewFromFloat(v), SourceTCMB
		}
		if err == nil {
			err = fmt.Errorf("non-positive rate %v", v)
		}
		e.log.Warn("tcmb USD/TRY unavailable, using fallback: %v", err)
	}
	return decimal.NewFromFloat(utils.FallbackUSDTRY), SourceFallback
}
