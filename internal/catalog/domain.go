// internal/catalog/domain.go
package catalog

import (
	"strings"
)

// Book represents a lendable title held by the library.
// Two books are the same book when their ISBNs match.
type Book struct {
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	PublicationYear int    `json:"publicationYear"`
	AvailableCopies int    `json:"availableCopies"`
}

// Equal reports whether b and other identify the same book.
func (b Book) Equal(other Book) bool {
	return b.ISBN == other.ISBN
}

// ValidationErrors maps a JSON field name to the reason it was rejected.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, msg := range v {
		msgs = append(msgs, msg)
	}
	return "invalid book: " + strings.Join(msgs, ", ")
}

// Validate checks the fields required to add a book to the inventory.
// It returns nil or a ValidationErrors value.
func (b Book) Validate() error {
	errs := ValidationErrors{}
	if strings.TrimSpace(b.ISBN) == "" {
		errs["isbn"] = "isbn is mandatory"
	}
	if strings.TrimSpace(b.Title) == "" {
		errs["title"] = "title is mandatory"
	}
	if strings.TrimSpace(b.Author) == "" {
		errs["author"] = "author is mandatory"
	}
	if b.PublicationYear <= 0 {
		errs["publicationYear"] = "publicationYear must be positive"
	}
	if b.AvailableCopies < 0 {
		errs["availableCopies"] = "availableCopies must not be negative"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// BorrowOutcome is the result of a borrow attempt.
type BorrowOutcome int

const (
	// Borrowed means one copy was taken from the inventory.
	Borrowed BorrowOutcome = iota
	// BookNotFound means no book with the ISBN is held.
	BookNotFound
	// NoCopiesAvailable means the book is held but every copy is out.
	NoCopiesAvailable
)

func (o BorrowOutcome) String() string {
	switch o {
	case Borrowed:
		return "borrowed"
	case BookNotFound:
		return "not found"
	case NoCopiesAvailable:
		return "no copies available"
	default:
		return "unknown"
	}
}
