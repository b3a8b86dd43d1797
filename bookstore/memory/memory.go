package memory

import (
	"fmt"
	"sync"

	"github.com/bookdex/bookdex/bookstore"
)

// Static and compile-time check to ensure InMemoryStore implements the
// bookstore.Store interface.
var _ bookstore.Store = (*InMemoryStore)(nil)

type bookKey struct {
	title  string
	source string
}

// InMemoryStore implements a book store that keeps every record in process
// memory. It is safe for concurrent use and serves as the reference
// implementation for tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	books map[bookKey]*bookstore.Book
}

// NewInMemoryStore creates an empty in-memory book store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		books: make(map[bookKey]*bookstore.Book),
	}
}

// Upsert creates a new or updates an existing record keyed on
// (title, source), fully replacing its genre associations.
func (s *InMemoryStore) Upsert(book *bookstore.Book) error {
	if err := book.Validate(); err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}

	// Store a private copy so later caller-side mutations cannot leak in.
	stored := book.Clone()
	stored.Genres = bookstore.NormalizeGenres(stored.Genres)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.books[bookKey{title: book.Title, source: book.Source}] = stored

	return nil
}

// Find performs a record lookup by (title, source).
func (s *InMemoryStore) Find(title, source string) (*bookstore.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, exists := s.books[bookKey{title: title, source: source}]
	if !exists {
		return nil, fmt.Errorf("find book %q/%q: %w", title, source, bookstore.ErrNotFound)
	}

	return book.Clone(), nil
}

// Remove deletes a record together with its genre associations.
func (s *InMemoryStore) Remove(title, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bookKey{title: title, source: source}
	if _, exists := s.books[key]; !exists {
		return fmt.Errorf("remove book %q/%q: %w", title, source, bookstore.ErrNotFound)
	}

	delete(s.books, key)

	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.books)
}
