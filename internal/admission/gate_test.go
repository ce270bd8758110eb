package admission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewGateRejectsNonPositiveLimit(t *testing.T) {
	_, err := NewGate(0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = NewGate(-3)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestTryEnterAndRelease(t *testing.T) {
	gate, err := NewGate(2)
	require.NoError(t, err)
	assert.Equal(t, 2, gate.Capacity())

	assert.True(t, gate.TryEnter())
	assert.True(t, gate.TryEnter())
	assert.False(t, gate.TryEnter(), "a third caller is rejected while both permits are held")

	gate.Release()
	assert.True(t, gate.TryEnter(), "a released permit can be taken again")
}

func TestConcurrentTryEnterNeverExceedsCapacity(t *testing.T) {
	const capacity = 4
	gate, err := NewGate(capacity)
	require.NoError(t, err)

	var mu sync.Mutex
	inside, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !gate.TryEnter() {
					continue
				}
				mu.Lock()
				inside++
				peak = max(peak, inside)
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				gate.Release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, capacity)
	for i := 0; i < capacity; i++ {
		assert.True(t, gate.TryEnter(), "every permit is back in the pool")
	}
}

func TestMiddlewareShedsWhenSaturated(t *testing.T) {
	gate, err := NewGate(1)
	require.NoError(t, err)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	h := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-unblock
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))
		done <- rec.Code
	}()
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"errorMessage":"Too many requests"}`, rec.Body.String())

	close(unblock)
	assert.Equal(t, http.StatusOK, <-done)

	assert.True(t, gate.TryEnter(), "the permit is released once the handler returns")
}

func TestMiddlewareReleasesPermitOnPanic(t *testing.T) {
	gate, err := NewGate(1)
	require.NoError(t, err)

	h := gate.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler failed")
	}))

	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/books", nil))
	})
	assert.True(t, gate.TryEnter())
}

func rejectedCount(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "admission.rejected" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMiddlewareCountsRejections(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	gate, err := NewGate(1, WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))
	require.NoError(t, err)

	h := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), rejectedCount(t, reader))

	require.True(t, gate.TryEnter())
	for i := 0; i < 3; i++ {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
	}
	gate.Release()

	assert.Equal(t, int64(3), rejectedCount(t, reader))
}
