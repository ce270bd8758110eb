// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the inventory operations exposed by the catalog.
// The context carries tracing data only; no operation blocks or honours cancellation.
type Service interface {
	AddBook(ctx context.Context, book Book) bool
	RemoveBook(ctx context.Context, isbn string) bool
	FindBookByISBN(ctx context.Context, isbn string) (Book, bool)
	FindBooksByAuthor(ctx context.Context, author string) []Book
	BorrowBook(ctx context.Context, isbn string) BorrowOutcome
	ReturnBook(ctx context.Context, isbn string) bool
}

// BookCache remembers recently read books by ISBN.
type BookCache interface {
	Add(isbn string, book Book)
	Invalidate(isbn string)
	Get(isbn string) (Book, bool)
}
