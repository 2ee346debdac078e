
package goldprice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Armin-kho/doviz-board/internal/cache"
	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

// DefaultTTL is long on purpose: most providers allow a few hundred calls a month.
const DefaultTTL = 6 * time.Hour

// ErrNoWorldPrice means every provider failed and nothing was cached.
var ErrNoWorldPrice = errors.New("world gold price unavailable")

// WorldGoldPrice is the international XAU/USD benchmark in USD per troy ounce.
type WorldGoldPrice struct {
	XAUUSDPrice int64  `json:"xauUsdPrice"`
	Source      string `json:"source"`
}

// Provider returns a raw XAU/USD price. Plausibility is checked by the resolver.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (float64, error)
}

// Resolver walks its providers in order and caches the first plausible price.
type Resolver struct {
	providers []Provider
	band      utils.Band
	timeout   time.Duration
	slot      *cache.Slot[WorldGoldPrice]
	log       *logger.Logger
}

func NewResolver(slot *cache.Slot[WorldGoldPrice], timeout time.Duration, log *logger.Logger, providers ...Provider) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		providers: providers,
		band:      utils.WorldGoldBand,
		timeout:   timeout,
		slot:      slot,
		log:       log,
	}
}

// Resolve returns the cached price while fresh; force skips the TTL. When
// every provider fails the cached price is returned unchanged, and only
// without one does it fail with ErrNoWorldPrice.
func (r *Resolver) Resolve(ctx context.Context, force bool) (WorldGoldPrice, error) {
	var (
		p   WorldGoldPrice
		err error
	)
	if force {
		p, err = r.slot.ForceRefresh(ctx, r.fetch)
	} else {
		p, err = r.slot.GetOrRefresh(ctx, r.fetch)
	}
	if err == nil {
		return p, nil
	}
	if errors.Is(err, cache.ErrStale) {
		r.log.Warn("all providers failed, using cached $%d (%s)", p.XAUUSDPrice, p.Source)
		return p, nil
	}
	r.log.Error("all providers failed and nothing cached: %v", err)
	return WorldGoldPrice{}, fmt.Errorf("%w: %w", ErrNoWorldPrice, err)
}

// LastUpdate reports when the cached price was fetched.
func (r *Resolver) LastUpdate() (time.Time, bool) {
	e, ok := r.slot.Peek()
	return e.At, ok
}

func (r *Resolver) fetch(ctx context.Context) (WorldGoldPrice, error) {
	if len(r.providers) == 0 {
		return WorldGoldPrice{}, errors.New("no providers configured")
	}

	var errs []error
	for _, p := range r.providers {
		v, err := r.try(ctx, p)
		if err != nil {
			r.log.Warn("%s: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		price := WorldGoldPrice{XAUUSDPrice: int64(math.Round(v)), Source: p.Name()}
		r.log.Info("%s: $%d/oz", price.Source, price.XAUUSDPrice)
		return price, nil
	}
	return WorldGoldPrice{}, errors.Join(errs...)
}

func (r *Resolver) try(ctx context.Context, p Provider) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := p.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if !r.band.Contains(v) {
		return 0, fmt.Errorf("implausible price %.4f", v)
	}
	return v, nil
}
