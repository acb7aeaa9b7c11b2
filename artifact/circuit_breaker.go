package artifact

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/pkg/errors"
	circuit "github.com/rubyist/circuitbreaker"
)

// BreakerFetcher wraps a Fetcher with one circuit breaker per host, so a dead
// mirror fails fast instead of costing every artifact its full retry budget.
type BreakerFetcher struct {
	fetcher  *Fetcher
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewBreakerFetcher wraps f.
func NewBreakerFetcher(f *Fetcher) *BreakerFetcher {
	return &BreakerFetcher{
		fetcher:  f,
		breakers: make(map[string]*circuit.Breaker),
	}
}

func (b *BreakerFetcher) breaker(host string) *circuit.Breaker {
	b.mu.RLock()
	breaker, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return breaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if breaker, ok := b.breakers[host]; ok {
		return breaker
	}

	// Trips after 5 consecutive failures.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	b.breakers[host] = breaker
	return breaker
}

// Fetch downloads rawURL unless the breaker for its host is open. A missing
// artifact does not count as a host failure.
func (b *BreakerFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	host := hostOf(rawURL)
	breaker := b.breaker(host)
	if !breaker.Ready() {
		return nil, errors.Wrapf(ErrUpstreamDown, "circuit breaker open for %s", host)
	}

	var body io.ReadCloser
	var notFound error
	err := breaker.Call(func() error {
		var err error
		body, err = b.fetcher.Fetch(ctx, rawURL)
		if errors.Is(err, ErrNotFound) {
			notFound = err
			return nil
		}
		return err
	}, 0)
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Tripped reports whether the breaker for host is open.
func (b *BreakerFetcher) Tripped(host string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	breaker, ok := b.breakers[host]
	return ok && breaker.Tripped()
}

// Close stops the underlying fetcher.
func (b *BreakerFetcher) Close() {
	b.fetcher.Close()
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
