
package utils

// Unit conversion.
const (
	// OunceToGram is grams per troy ounce.
	OunceToGram = 31.1035
	// RegionalOunceMultiplier converts the Istanbul/London XAU/USD gap into the
	// denomination the regional quote page uses. Calibrated against that page;
	// it is intentionally not OunceToGram.
	RegionalOunceMultiplier = 31.99
	GramsPerKilogram        = 1000
)

// FallbackUSDTRY is used when no plausible USD/TRY rate can be found.
const FallbackUSDTRY = 42.0

// Band is a plausibility range. Contains is exclusive on both ends.
type Band struct {
	Min float64
	Max float64
}

func (b Band) Contains(v float64) bool { return v > b.Min && v < b.Max }

// Plausibility guards.
var (
	WorldGoldBand = Band{Min: 1000, Max: 10000} // USD per troy ounce
	USDTRYBand    = Band{Min: 30, Max: 60}
	// ScaledUSDTRYBand applies to USD/TRY text with its separators removed
	// ("40,1234" -> 401234). Bounds are inclusive, see ContainsInclusive.
	ScaledUSDTRYBand = Band{Min: 300000, Max: 500000}
)

func (b Band) ContainsInclusive(v float64) bool { return v >= b.Min && v <= b.Max }
