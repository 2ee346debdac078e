
package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Armin-kho/doviz-board/internal/logger"
)

// Registry runs a fixed, ordered list of adapters.
type Registry struct {
	adapters []Adapter
	timeout  time.Duration
	log      *logger.Logger
}

func NewRegistry(timeout time.Duration, log *logger.Logger, adapters ...Adapter) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{adapters: adapters, timeout: timeout, log: log}
}

// Names returns adapter names in registry order.
func (r *Registry) Names() []SourceName {
	out := make([]SourceName, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.Name())
	}
	return out
}

// Collect fetches every adapter concurrently and returns one Result per
// adapter, in registry order. A failing adapter yields a Result with nil
// Quotes and never affects the others.
func (r *Registry) Collect(ctx context.Context) []Result {
	results := make([]Result, len(r.adapters))

	var wg sync.WaitGroup
	for i, a := range r.adapters {
		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()
			results[i] = r.run(ctx, a)
		}(i, a)
	}
	wg.Wait()
	return results
}

func (r *Registry) run(ctx context.Context, a Adapter) (res Result) {
	res.Source = a.Name()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("%s: panic: %v", a.Name(), p)
			res.Quotes = nil
			res.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q, err := a.Fetch(ctx)
	res.FetchedAt = time.Now()
	if err != nil {
		r.log.Warn("%s: %v", a.Name(), err)
		res.Err = err
		return res
	}
	res.Quotes = q
	return res
}
