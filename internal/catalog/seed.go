// internal/catalog/seed.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// SeedSchema is the books table the seed loader reads from.
const SeedSchema = `
	CREATE TABLE IF NOT EXISTS books (
		isbn             TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		publication_year INTEGER NOT NULL,
		available_copies INTEGER NOT NULL DEFAULT 0
	)
`

// SeedQuery selects every book to import.
const SeedQuery = `
	SELECT isbn, title, author, publication_year, available_copies
	FROM books
	ORDER BY isbn
`

// LoadBooks reads the books table of a seed database.
// Rows that would not pass Book.Validate are skipped and counted.
func LoadBooks(ctx context.Context, db *sql.DB) (books []Book, skipped int, err error) {
	rows, err := db.QueryContext(ctx, SeedQuery)
	if err != nil {
		return nil, 0, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.PublicationYear, &b.AvailableCopies); err != nil {
			return nil, 0, fmt.Errorf("scan book: %w", err)
		}
		if b.Validate() != nil {
			skipped++
			continue
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate books: %w", err)
	}

	return books, skipped, nil
}

// Seed adds every book to svc and returns how many were new.
func Seed(ctx context.Context, svc Service, books []Book) int {
	created := 0
	for _, b := range books {
		if svc.AddBook(ctx, b) {
			created++
		}
	}
	return created
}
