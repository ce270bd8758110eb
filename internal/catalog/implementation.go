// internal/catalog/implementation.go
package catalog

import (
	"context"
	"hash/maphash"
	"slices"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// DefaultShards is the shard count used when NewStore is given a non-positive value.
const DefaultShards = 32

// record holds the immutable descriptive fields of a book next to its copy counter.
// book.AvailableCopies is never read; copies is the live value.
type record struct {
	book   Book
	copies atomic.Int64
}

func newRecord(book Book) *record {
	r := &record{book: book}
	r.copies.Store(int64(book.AvailableCopies))
	return r
}

func (r *record) snapshot() Book {
	b := r.book
	b.AvailableCopies = int(r.copies.Load())
	return b
}

// shard guards the structure of one slice of the ISBN space.
// Copy counters are mutated without holding mu.
type shard struct {
	mu      sync.RWMutex
	records map[string]*record
}

func (s *shard) get(isbn string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[isbn]
	return r, ok
}

// Store is the in-memory inventory. It implements Service.
//
// Records are spread over lock-striped shards so that adds and removes on
// unrelated ISBNs do not contend, and borrow/return never take a write lock.
type Store struct {
	seed   maphash.Seed
	mask   uint64
	shards []*shard
}

// NewStore creates an empty inventory. shards is rounded up to a power of two.
func NewStore(shards int) *Store {
	if shards <= 0 {
		shards = DefaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}

	s := &Store{
		seed:   maphash.MakeSeed(),
		mask:   uint64(n - 1),
		shards: make([]*shard, n),
	}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]*record)}
	}
	return s
}

func (s *Store) shardFor(isbn string) *shard {
	return s.shards[maphash.String(s.seed, isbn)&s.mask]
}

// AddBook stores book, replacing any record with the same ISBN.
// It returns true when no record existed before. book must be valid.
func (s *Store) AddBook(_ context.Context, book Book) bool {
	sh := s.shardFor(book.ISBN)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, existed := sh.records[book.ISBN]
	sh.records[book.ISBN] = newRecord(book)
	return !existed
}

// RemoveBook deletes the record for isbn and reports whether one existed.
func (s *Store) RemoveBook(_ context.Context, isbn string) bool {
	sh := s.shardFor(isbn)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[isbn]; !ok {
		return false
	}
	delete(sh.records, isbn)
	return true
}

// FindBookByISBN returns a snapshot of the book. The copy count may be stale
// as soon as it is returned.
func (s *Store) FindBookByISBN(_ context.Context, isbn string) (Book, bool) {
	r, ok := s.shardFor(isbn).get(isbn)
	if !ok {
		return Book{}, false
	}
	return r.snapshot(), true
}

// FindBooksByAuthor scans every shard for an exact author match.
// This is the slow path of the store: there is no author index.
// The result is ordered by ISBN.
func (s *Store) FindBooksByAuthor(_ context.Context, author string) []Book {
	books := []Book{}
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.records {
			if r.book.Author == author {
				books = append(books, r.snapshot())
			}
		}
		sh.mu.RUnlock()
	}

	slices.SortFunc(books, func(a, b Book) int {
		return strings.Compare(a.ISBN, b.ISBN)
	})
	return books
}

// BorrowBook takes one copy of the book.
//
// The counter is decremented with a compare-and-swap loop: the "copies > 0" check
// is made against the exact value being replaced, so concurrent borrowers can never
// drive the count below zero. A failed swap retries from a fresh read.
func (s *Store) BorrowBook(_ context.Context, isbn string) BorrowOutcome {
	r, ok := s.shardFor(isbn).get(isbn)
	if !ok {
		return BookNotFound
	}

	for {
		current := r.copies.Load()
		if current <= 0 {
			return NoCopiesAvailable
		}
		if r.copies.CompareAndSwap(current, current-1) {
			return Borrowed
		}
	}
}

// ReturnBook puts one copy back. The count has no upper bound.
func (s *Store) ReturnBook(_ context.Context, isbn string) bool {
	r, ok := s.shardFor(isbn).get(isbn)
	if !ok {
		return false
	}
	r.copies.Inc()
	return true
}

// Len returns the number of books held.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}
