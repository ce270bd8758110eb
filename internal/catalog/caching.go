// internal/catalog/caching.go
package catalog

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "libraryinventory/catalog"

// Option configures a caching service.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// cachingService puts a BookCache in front of another Service.
type cachingService struct {
	delegate Service
	cache    BookCache
	tracer   trace.Tracer
	hits     metric.Int64Counter
	misses   metric.Int64Counter
}

// NewCachingService wraps delegate with cache-aside lookups by ISBN.
//
// Lookups are populated lazily on a miss. Every mutation that changes a book
// (remove, borrow, return) invalidates the cached copy before delegating.
// A lookup that runs between the invalidation and the delegated mutation can
// still cache the pre-mutation copy; that window is accepted.
func NewCachingService(delegate Service, cache BookCache, opts ...Option) Service {
	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	// Instrument names are constant and valid.
	hits, _ := meter.Int64Counter("catalog.cache.hits",
		metric.WithDescription("ISBN lookups answered from the book cache"))
	misses, _ := meter.Int64Counter("catalog.cache.misses",
		metric.WithDescription("ISBN lookups that fell through to the inventory"))

	return &cachingService{
		delegate: delegate,
		cache:    cache,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		hits:     hits,
		misses:   misses,
	}
}

func (s *cachingService) AddBook(ctx context.Context, book Book) bool {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book",
		trace.WithAttributes(attribute.String("book.isbn", book.ISBN)))
	defer span.End()

	created := s.delegate.AddBook(ctx, book)
	span.SetAttributes(attribute.Bool("book.created", created))
	return created
}

func (s *cachingService) RemoveBook(ctx context.Context, isbn string) bool {
	ctx, span := s.tracer.Start(ctx, "catalog.remove_book",
		trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	s.cache.Invalidate(isbn)
	removed := s.delegate.RemoveBook(ctx, isbn)
	span.SetAttributes(attribute.Bool("book.found", removed))
	return removed
}

func (s *cachingService) FindBookByISBN(ctx context.Context, isbn string) (Book, bool) {
	ctx, span := s.tracer.Start(ctx, "catalog.find_book_by_isbn",
		trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	if book, ok := s.cache.Get(isbn); ok {
		s.hits.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return book, true
	}
	s.misses.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	book, ok := s.delegate.FindBookByISBN(ctx, isbn)
	if ok {
		s.cache.Add(isbn, book)
	}
	span.SetAttributes(attribute.Bool("book.found", ok))
	return book, ok
}

// FindBooksByAuthor is not cached; the cache is keyed by ISBN only.
func (s *cachingService) FindBooksByAuthor(ctx context.Context, author string) []Book {
	ctx, span := s.tracer.Start(ctx, "catalog.find_books_by_author",
		trace.WithAttributes(attribute.String("book.author", author)))
	defer span.End()

	books := s.delegate.FindBooksByAuthor(ctx, author)
	span.SetAttributes(attribute.Int("books.found", len(books)))
	return books
}

func (s *cachingService) BorrowBook(ctx context.Context, isbn string) BorrowOutcome {
	ctx, span := s.tracer.Start(ctx, "catalog.borrow_book",
		trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	s.cache.Invalidate(isbn)
	outcome := s.delegate.BorrowBook(ctx, isbn)
	span.SetAttributes(attribute.String("borrow.outcome", outcome.String()))
	return outcome
}

func (s *cachingService) ReturnBook(ctx context.Context, isbn string) bool {
	ctx, span := s.tracer.Start(ctx, "catalog.return_book",
		trace.WithAttributes(attribute.String("book.isbn", isbn)))
	defer span.End()

	s.cache.Invalidate(isbn)
	returned := s.delegate.ReturnBook(ctx, isbn)
	span.SetAttributes(attribute.Bool("book.found", returned))
	return returned
}
