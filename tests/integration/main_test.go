// tests/integration/main_test.go
package integration

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryinventory/internal/admission"
	"libraryinventory/internal/api"
	"libraryinventory/internal/cache"
	"libraryinventory/internal/catalog"
	"libraryinventory/internal/clients"
)

type TestSuite struct {
	server *httptest.Server
	client *clients.CatalogClient
}

// setupTestSuite wires the service the same way cmd/catalog does and serves it in-process.
func setupTestSuite(t *testing.T, maxConcurrent int) *TestSuite {
	t.Helper()

	bookCache, err := cache.New[string, catalog.Book](100, 16, 0.75)
	require.NoError(t, err)
	gate, err := admission.NewGate(maxConcurrent)
	require.NoError(t, err)

	svc := catalog.NewCachingService(catalog.NewStore(catalog.DefaultShards), bookCache)
	server := httptest.NewServer(api.NewRouter(svc, gate))

	return &TestSuite{
		server: server,
		client: clients.NewCatalogClient(server.URL).WithHTTPClient(server.Client()),
	}
}

func (ts *TestSuite) teardown() {
	ts.server.Close()
}

func TestCheckoutFlow(t *testing.T) {
	ts := setupTestSuite(t, 10)
	defer ts.teardown()
	ctx := context.Background()

	created, err := ts.client.AddBook(ctx, catalog.Book{
		ISBN:            "9780141439518",
		Title:           "Pride and Prejudice",
		Author:          "Jane Austen",
		PublicationYear: 1813,
		AvailableCopies: 5,
	})
	require.NoError(t, err)
	require.True(t, created)

	// Prime the cache so the borrow has to invalidate it
	book, err := ts.client.GetBook(ctx, "9780141439518")
	require.NoError(t, err)
	require.Equal(t, 5, book.AvailableCopies)

	outcome, err := ts.client.BorrowBook(ctx, "9780141439518")
	require.NoError(t, err)
	require.Equal(t, catalog.Borrowed, outcome)

	book, err = ts.client.GetBook(ctx, "9780141439518")
	require.NoError(t, err)
	assert.Equal(t, 4, book.AvailableCopies)

	require.NoError(t, ts.client.ReturnBook(ctx, "9780141439518"))

	book, err = ts.client.GetBook(ctx, "9780141439518")
	require.NoError(t, err)
	assert.Equal(t, 5, book.AvailableCopies)

	require.NoError(t, ts.client.RemoveBook(ctx, "9780141439518"))
	_, err = ts.client.GetBook(ctx, "9780141439518")
	assert.ErrorIs(t, err, clients.ErrBookNotFound)
}

func TestConcurrentCheckoutPreventsDoubleBooking(t *testing.T) {
	ts := setupTestSuite(t, 100)
	defer ts.teardown()
	ctx := context.Background()

	_, err := ts.client.AddBook(ctx, catalog.Book{
		ISBN:            "9780743273565",
		Title:           "The Great Gatsby",
		Author:          "F. Scott Fitzgerald",
		PublicationYear: 1925,
		AvailableCopies: 1,
	})
	require.NoError(t, err)

	// Attempt concurrent checkouts
	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := ts.client.BorrowBook(ctx, "9780743273565")
			if err == nil && outcome == catalog.Borrowed {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, successCount, "Only one concurrent checkout should succeed")

	book, err := ts.client.GetBook(ctx, "9780743273565")
	require.NoError(t, err)
	assert.Equal(t, 0, book.AvailableCopies)
}
