
package currency

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Quote is a buy/sell pair in TRY. A zero side means "unavailable".
type Quote struct {
	Buy  decimal.Decimal
	Sell decimal.Decimal
}

// NewQuote rounds buy and sell to the precision of code. Negative, NaN or
// infinite inputs are treated as unavailable.
func NewQuote(code Code, buy, sell float64) Quote {
	return Quote{Buy: round(code, buy), Sell: round(code, sell)}
}

func round(code Code, v float64) decimal.Decimal {
	if !(v > 0) || v > 1e15 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(code.Precision())
}

func (q Quote) HasBuy() bool  { return q.Buy.IsPositive() }
func (q Quote) HasSell() bool { return q.Sell.IsPositive() }

// Quotes maps currency codes to quotes. It is the unit one source produces.
type Quotes map[Code]Quote

type quoteJSON struct {
	Buy  string `json:"buy"`
	Sell string `json:"sell"`
}

// MarshalJSON renders every side as a fixed-precision string, "0" when the
// side is unavailable.
func (qs Quotes) MarshalJSON() ([]byte, error) {
	out := make(map[Code]quoteJSON, len(qs))
	for code, q := range qs {
		out[code] = quoteJSON{
			Buy:  Fixed(code, q.Buy),
			Sell: Fixed(code, q.Sell),
		}
	}
	return json.Marshal(out)
}

func (qs *Quotes) UnmarshalJSON(b []byte) error {
	var raw map[Code]quoteJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Quotes, len(raw))
	for code, q := range raw {
		buy, err := decimal.NewFromString(q.Buy)
		if err != nil {
			return err
		}
		sell, err := decimal.NewFromString(q.Sell)
		if err != nil {
			return err
		}
		out[code] = Quote{Buy: buy, Sell: sell}
	}
	*qs = out
	return nil
}

// Fixed formats d with the precision of code, or "0" when d is not positive.
func Fixed(code Code, d decimal.Decimal) string {
	if !d.IsPositive() {
		return "0"
	}
	return d.StringFixed(code.Precision())
}
