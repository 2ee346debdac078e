
package aggregate

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/sources"
)

// DefaultTrustedGold are the sources whose gram gold quotes enter the XAU
// average. The others derive gold from XAU/USD and skew it.
var DefaultTrustedGold = []sources.SourceName{sources.SourceHarem, sources.SourceHakan}

// Averages computes per-currency mean buy and sell over available results.
// Only positive sides count; a side with no contributor averages to zero.
// XAU is averaged over trustedGold only.
func Averages(results []sources.Result, codes []currency.Code, trustedGold []sources.SourceName) currency.Quotes {
	trusted := make(map[sources.SourceName]bool, len(trustedGold))
	for _, s := range trustedGold {
		trusted[s] = true
	}

	out := make(currency.Quotes, len(codes))
	for _, code := range codes {
		var buy, sell sum
		for _, r := range results {
			if !r.Available() {
				continue
			}
			if code == currency.XAU && !trusted[r.Source] {
				continue
			}
			q, ok := r.Quotes[code]
			if !ok {
				continue
			}
			buy.add(q.Buy)
			sell.add(q.Sell)
		}
		out[code] = currency.Quote{
			Buy:  buy.mean(code.Precision()),
			Sell: sell.mean(code.Precision()),
		}
	}
	return out
}

type sum struct {
	total decimal.Decimal
	n     int64
}

func (s *sum) add(v decimal.Decimal) {
	if !v.IsPositive() {
		return
	}
	s.total = s.total.Add(v)
	s.n++
}

func (s sum) mean(places int32) decimal.Decimal {
	if s.n == 0 {
		return decimal.Zero
	}
	return s.total.Div(decimal.NewFromInt(s.n)).Round(places)
}

// Best names the source with the highest buy and the one with the lowest
// sell for a currency. Empty means no source quoted that side.
type Best struct {
	BestBuy  sources.SourceName
	BestSell sources.SourceName
}

func (b Best) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BestBuy  *sources.SourceName `json:"bestBuy"`
		BestSell *sources.SourceName `json:"bestSell"`
	}{nullable(b.BestBuy), nullable(b.BestSell)})
}

func (b *Best) UnmarshalJSON(data []byte) error {
	var raw struct {
		BestBuy  *sources.SourceName `json:"bestBuy"`
		BestSell *sources.SourceName `json:"bestSell"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Best{}
	if raw.BestBuy != nil {
		b.BestBuy = *raw.BestBuy
	}
	if raw.BestSell != nil {
		b.BestSell = *raw.BestSell
	}
	return nil
}

func nullable(s sources.SourceName) *sources.SourceName {
	if s == "" {
		return nil
	}
	return &s
}

// BestRates walks results in order; comparisons are strict, so the earlier
// source keeps a tie.
func BestRates(results []sources.Result, codes []currency.Code) map[currency.Code]Best {
	out := make(map[currency.Code]Best, len(codes))
	for _, code := range codes {
		var best Best
		var maxBuy, minSell decimal.Decimal
		for _, r := range results {
			if !r.Available() {
				continue
			}
			q, ok := r.Quotes[code]
			if !ok {
				continue
			}
			if q.HasBuy() && (best.BestBuy == "" || q.Buy.GreaterThan(maxBuy)) {
				best.BestBuy, maxBuy = r.Source, q.Buy
			}
			if q.HasSell() && (best.BestSell == "" || q.Sell.LessThan(minSell)) {
				best.BestSell, minSell = r.Source, q.Sell
			}
		}
		out[code] = best
	}
	return out
}
