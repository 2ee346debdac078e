
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrEmpty is returned when a refresh failed and nothing was ever cached.
	ErrEmpty = errors.New("cache: no value")
	// ErrStale accompanies a previously cached value served after a failed refresh.
	ErrStale = errors.New("cache: serving stale value")
)

type RefreshFunc[T any] func(ctx context.Context) (T, error)

// Entry is a cached value and the time it was produced.
type Entry[T any] struct {
	Value T         `json:"value"`
	At    time.Time `json:"at"`
}

// Store is an optional second tier consulted once when the slot is first
// used, and written on every successful refresh.
type Store[T any] interface {
	Load(ctx context.Context) (Entry[T], bool, error)
	Save(ctx context.Context, e Entry[T]) error
}

// Slot holds a single value with a TTL. Values are replaced wholesale and
// concurrent refreshes of the same slot collapse into one call.
type Slot[T any] struct {
	name  string
	ttl   time.Duration
	now   func() time.Time
	store Store[T]
	onErr func(error)

	mu       sync.RWMutex
	entry    Entry[T]
	has      bool
	hydrated bool

	group singleflight.Group
}

type Option[T any] func(*Slot[T])

func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Slot[T]) { s.now = now }
}

// WithStore attaches a second tier. onErr receives store failures, which
// never fail the slot itself.
func WithStore[T any](store Store[T], onErr func(error)) Option[T] {
	return func(s *Slot[T]) {
		s.store = store
		s.onErr = onErr
	}
}

func New[T any](name string, ttl time.Duration, opts ...Option[T]) *Slot[T] {
	s := &Slot[T]{name: name, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Slot[T]) Name() string       { return s.name }
func (s *Slot[T]) TTL() time.Duration { return s.ttl }

// Peek returns the current entry regardless of its age.
func (s *Slot[T]) Peek() (Entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry, s.has
}

// Fresh returns the value only while its age is below the TTL.
func (s *Slot[T]) Fresh() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.has && s.now().Sub(s.entry.At) < s.ttl {
		return s.entry.Value, true
	}
	var zero T
	return zero, false
}

// Set replaces the cached value.
func (s *Slot[T]) Set(ctx context.Context, v T) {
	e := Entry[T]{Value: v, At: s.now()}
	s.mu.Lock()
	s.entry = e
	s.has = true
	s.hydrated = true
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, e); err != nil {
			s.reportErr(fmt.Errorf("%s: store save: %w", s.name, err))
		}
	}
}

// GetOrRefresh serves the cached value while fresh, otherwise refreshes.
// When the refresh fails the previous value is returned together with an
// error wrapping ErrStale; with nothing cached the error wraps ErrEmpty.
func (s *Slot[T]) GetOrRefresh(ctx context.Context, refresh RefreshFunc[T]) (T, error) {
	s.hydrate(ctx)
	if v, ok := s.Fresh(); ok {
		return v, nil
	}
	return s.do(ctx, refresh, false)
}

// ForceRefresh ignores the TTL. Failure handling matches GetOrRefresh.
func (s *Slot[T]) ForceRefresh(ctx context.Context, refresh RefreshFunc[T]) (T, error) {
	s.hydrate(ctx)
	return s.do(ctx, refresh, true)
}

func (s *Slot[T]) do(ctx context.Context, refresh RefreshFunc[T], force bool) (T, error) {
	res, err, _ := s.group.Do(s.name, func() (any, error) {
		// Another caller may have refreshed while we waited for the flight.
		if !force {
			if v, ok := s.Fresh(); ok {
				return v, nil
			}
		}
		v, err := refresh(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(ctx, v)
		return v, nil
	})
	if err == nil {
		return res.(T), nil
	}

	if e, ok := s.Peek(); ok {
		return e.Value, fmt.Errorf("%w (%s): %w", ErrStale, s.name, err)
	}
	var zero T
	return zero, fmt.Errorf("%w (%s): %w", ErrEmpty, s.name, err)
}

// hydrate loads the store entry once. The load runs outside mu so readers
// are not held up by the store; concurrent callers share one load.
func (s *Slot[T]) hydrate(ctx context.Context) {
	if s.store == nil || s.isHydrated() {
		return
	}
	_, _, _ = s.group.Do(s.name+"/hydrate", func() (any, error) {
		if s.isHydrated() {
			return nil, nil
		}
		e, ok, err := s.store.Load(ctx)

		s.mu.Lock()
		s.hydrated = true
		if err == nil && ok && !s.has {
			s.entry = e
			s.has = true
		}
		s.mu.Unlock()

		if err != nil {
			s.reportErr(fmt.Errorf("%s: store load: %w", s.name, err))
		}
		return nil, nil
	})
}

func (s *Slot[T]) isHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

func (s *Slot[T]) reportErr(err error) {
	if s.onErr != nil {
		s.onErr(err)
	}
}
