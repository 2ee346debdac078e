
package currency

type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
	GBP Code = "GBP"
	CHF Code = "CHF"
	XAU Code = "XAU" // gram gold in TRY
)

type Item struct {
	Code Code
	Name string
	Icon string
	// Decimal places used for every quote of this currency.
	Precision int32
}

// All is the display order of the board.
var All = []Item{
	{Code: USD, Name: "Dolar", Icon: "$", Precision: 4},
	{Code: EUR, Name: "Euro", Icon: "€", Precision: 4},
	{Code: GBP, Name: "Sterlin", Icon: "£", Precision: 4},
	{Code: CHF, Name: "Frank", Icon: "CHF", Precision: 4},
	{Code: XAU, Name: "Altın", Icon: "🪙", Precision: 2},
}

func ByCode(c Code) (Item, bool) {
	for _, it := range All {
		if it.Code == c {
			return it, true
		}
	}
	return Item{}, false
}

// Codes returns the board codes in display order.
func Codes() []Code {
	out := make([]Code, 0, len(All))
	for _, it := range All {
		out = append(out, it.Code)
	}
	return out
}

// Precision returns the number of decimals for c (4 for unknown codes).
func (c Code) Precision() int32 {
	if it, ok := ByCode(c); ok {
		return it.Precision
	}
	return 4
}

func Names() map[Code]string {
	out := make(map[Code]string, len(All))
	for _, it := range All {
		out[it.Code] = it.Name
	}
	return out
}

func Icons() map[Code]string {
	out := make(map[Code]string, len(All))
	for _, it := range All {
		out[it.Code] = it.Icon
	}
	return out
}
