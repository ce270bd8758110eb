// Package admission bounds the number of requests executing at once.
//
// A Gate is a load shedder, not a rate limiter: a request that finds no free
// permit is rejected immediately instead of waiting for one.
package admission

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var ErrInvalidLimit = errors.New("admission: max concurrent requests must be positive")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Gate is a counting permit pool. It is safe for concurrent use.
type Gate struct {
	permits  *semaphore.Weighted
	capacity int
	rejected metric.Int64Counter
	logEvery rate.Sometimes

	meterProvider metric.MeterProvider
}

// Option configures a Gate.
type Option func(*Gate)

// WithMeterProvider records the rejection counter on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(g *Gate) { g.meterProvider = mp }
}

// NewGate creates a gate with maxConcurrent permits.
func NewGate(maxConcurrent int, opts ...Option) (*Gate, error) {
	if maxConcurrent <= 0 {
		return nil, ErrInvalidLimit
	}

	g := &Gate{
		permits:       semaphore.NewWeighted(int64(maxConcurrent)),
		capacity:      maxConcurrent,
		logEvery:      rate.Sometimes{First: 1, Interval: time.Second},
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(g)
	}

	rejected, err := g.meterProvider.Meter("libraryinventory/admission").Int64Counter("admission.rejected",
		metric.WithDescription("Requests shed because every permit was in use"))
	if err != nil {
		return nil, fmt.Errorf("create rejection counter: %w", err)
	}
	g.rejected = rejected
	return g, nil
}

// TryEnter takes a permit without blocking. When it returns true the caller
// must call Release exactly once; when it returns false the caller must not.
func (g *Gate) TryEnter() bool {
	return g.permits.TryAcquire(1)
}

// Release returns a permit taken by a successful TryEnter.
func (g *Gate) Release() {
	g.permits.Release(1)
}

// Capacity returns the configured number of permits.
func (g *Gate) Capacity() int {
	return g.capacity
}

// Middleware sheds requests with 429 Too Many Requests while the gate is saturated.
// The permit is released on every exit path of next, panics included.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.TryEnter() {
			g.reject(w, r)
			return
		}
		defer g.Release()

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request) {
	g.rejected.Add(r.Context(), 1)
	g.logEvery.Do(func() {
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("max_concurrent", g.capacity).
			Msg("too many requests")
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{"errorMessage": "Too many requests"})
}
