package scraper

import (
	"context"

	"github.com/bookdex/bookdex/bookstore"
)

//go:generate mockgen -package mocks -destination mocks/mocks.go . PageFetcher,BookStore

// PageFetcher should be implemented by objects that can retrieve the HTML
// document behind a URL.
type PageFetcher interface {
	// Fetch retrieves the HTML document at the given URL.
	Fetch(ctx context.Context, url string) (string, error)
}

// BookStore should be implemented by objects that can persist and look up
// scraped book records.
type BookStore interface {
	// Upsert creates a new or updates an existing book record keyed on
	// (title, source).
	Upsert(book *bookstore.Book) error

	// Find performs a book lookup by its (title, source) identity. It
	// returns bookstore.ErrNotFound when no record matches.
	Find(title, source string) (*bookstore.Book, error)

	// Remove deletes a book record and its genre associations.
	Remove(title, source string) error
}
