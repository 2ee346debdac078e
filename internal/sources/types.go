
package sources

import (
	"context"
	"time"

	"github.com/Armin-kho/doviz-board/internal/currency"
)

type SourceName string

const (
	SourceAhlatci SourceName = "ahlatciDoviz"
	SourceHarem   SourceName = "haremAltin"
	SourceHakan   SourceName = "hakanDoviz"
	SourceCarsi   SourceName = "carsiDoviz"
)

// DefaultOrder is the fixed iteration order used for best-rate tie breaks.
var DefaultOrder = []SourceName{SourceAhlatci, SourceHarem, SourceHakan, SourceCarsi}

// Adapter fetches one upstream and maps it to TRY quotes.
type Adapter interface {
	Name() SourceName
	Fetch(ctx context.Context) (currency.Quotes, error)
}

// Result is one adapter's outcome in a refresh cycle. Quotes is nil when the
// source was unavailable.
type Result struct {
	Source    SourceName
	Quotes    currency.Quotes
	Err       error
	FetchedAt time.Time
}

func (r Result) Available() bool { return r.Quotes != nil }
