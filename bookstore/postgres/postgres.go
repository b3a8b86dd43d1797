package postgres

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/bookdex/bookdex/bookstore"
)

// Static and compile-time check to ensure BookStore implements the
// bookstore.Store interface.
var _ bookstore.Store = (*BookStore)(nil)

var (
	insertBookQuery = `
		INSERT INTO books (
			title, source, synopsis, author, updated_on, newest_chapter,
			image_url, rating, status, content_type, follower_count, chapters
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`

	upsertBookQuery = `
		INSERT INTO books (
			title, source, synopsis, author, updated_on, newest_chapter,
			image_url, rating, status, content_type, follower_count, chapters
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (title, source) DO UPDATE SET
			synopsis = EXCLUDED.synopsis,
			author = EXCLUDED.author,
			updated_on = EXCLUDED.updated_on,
			newest_chapter = EXCLUDED.newest_chapter,
			image_url = EXCLUDED.image_url,
			rating = EXCLUDED.rating,
			status = EXCLUDED.status,
			content_type = EXCLUDED.content_type,
			follower_count = EXCLUDED.follower_count,
			chapters = EXCLUDED.chapters
		`

	findBookQuery = `
		SELECT synopsis, author, updated_on, newest_chapter, image_url,
		       rating, status, content_type, follower_count, chapters
		FROM books
		WHERE title = $1 AND source = $2
		`

	findGenresQuery = `
		SELECT g.name
		FROM book_genres bg
		JOIN genres g ON g.id = bg.genre_id
		WHERE bg.book_title = $1 AND bg.book_source = $2
		ORDER BY bg.id
		`

	countBooksQuery   = "SELECT COUNT(*) FROM books WHERE title = $1 AND source = $2"
	deleteBooksQuery  = "DELETE FROM books WHERE title = $1 AND source = $2"
	deleteGenresQuery = "DELETE FROM book_genres WHERE book_title = $1 AND book_source = $2"
	findGenreIDQuery  = "SELECT id FROM genres WHERE name = $1"
	insertGenreQuery  = "INSERT INTO genres (name) VALUES ($1) RETURNING id"

	insertBookGenreQuery = `
		INSERT INTO book_genres (book_title, book_source, genre_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
		`
)

// BookStore implements a book store backed by a PostgreSQL instance.
//
// Writes are scoped to one transaction per book: the record upsert and the
// full replacement of its genre associations either land together or not at
// all, so no reader ever observes a book with stale genres.
type BookStore struct {
	db *sql.DB
}

// NewBookStore returns a BookStore connected to the PostgreSQL instance
// specified by dsn.
func NewBookStore(dsn string) (*BookStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open book store: %w", err)
	}

	return &BookStore{db: db}, nil
}

// EnsureSchema creates the books, genres and join tables if they are not
// present yet.
func (s *BookStore) EnsureSchema() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", classifyError(err))
	}

	return nil
}

// Close terminates the connection to the PostgreSQL instance.
func (s *BookStore) Close() error {
	return s.db.Close()
}

// Upsert creates a new or updates an existing record keyed on
// (title, source) and replaces its genre associations.
//
// Before writing, any duplicate rows for the identity key are swept and the
// record recreated. Historical ingestion bugs produced duplicate rows in
// production; the writer self-heals that corruption class on every pass.
func (s *BookStore) Upsert(book *bookstore.Book) error {
	if err := book.Validate(); err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}

	chapters, err := json.Marshal(book.Chapters)
	if err != nil {
		return fmt.Errorf("upsert book: encode chapters: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert book: %w", classifyError(err))
	}
	defer tx.Rollback()

	var count int
	row := tx.QueryRow(countBooksQuery, book.Title, book.Source)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("upsert book: %w", classifyError(err))
	}

	// Duplicate rows for the identity key mean the table predates the
	// primary key, so the conflict target the upsert names is absent.
	// Sweep the duplicates and recreate the record with a plain insert.
	query := upsertBookQuery
	if count > 1 {
		if _, err := tx.Exec(deleteBooksQuery, book.Title, book.Source); err != nil {
			return fmt.Errorf("upsert book: sweep duplicates: %w", classifyError(err))
		}
		query = insertBookQuery
	}

	_, err = tx.Exec(query,
		book.Title,
		book.Source,
		book.Synopsis,
		book.Author,
		book.UpdatedOn,
		book.NewestChapter,
		book.ImageURL,
		book.Rating,
		book.Status,
		book.ContentType,
		book.FollowerCount,
		chapters,
	)
	if err != nil {
		return fmt.Errorf("upsert book: %w", classifyError(err))
	}

	if err := s.replaceGenres(tx, book); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert book: %w", classifyError(err))
	}

	return nil
}

// replaceGenres drops all genre associations for the book and re-inserts
// the normalized scraped set, creating genre rows on first sight.
func (s *BookStore) replaceGenres(tx *sql.Tx, book *bookstore.Book) error {
	if _, err := tx.Exec(deleteGenresQuery, book.Title, book.Source); err != nil {
		return fmt.Errorf("replace genres: %w", classifyError(err))
	}

	for _, name := range bookstore.NormalizeGenres(book.Genres) {
		var genreID int64

		err := tx.QueryRow(findGenreIDQuery, name).Scan(&genreID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := tx.QueryRow(insertGenreQuery, name).Scan(&genreID); err != nil {
				return fmt.Errorf("replace genres: %w", classifyError(err))
			}
		case err != nil:
			return fmt.Errorf("replace genres: %w", classifyError(err))
		}

		_, err = tx.Exec(insertBookGenreQuery, book.Title, book.Source, genreID)
		if err != nil {
			return fmt.Errorf("replace genres: %w", classifyError(err))
		}
	}

	return nil
}

// Find performs a record lookup by (title, source).
func (s *BookStore) Find(title, source string) (*bookstore.Book, error) {
	book := &bookstore.Book{Title: title, Source: source}

	var rawChapters []byte
	row := s.db.QueryRow(findBookQuery, title, source)
	err := row.Scan(
		&book.Synopsis,
		&book.Author,
		&book.UpdatedOn,
		&book.NewestChapter,
		&book.ImageURL,
		&book.Rating,
		&book.Status,
		&book.ContentType,
		&book.FollowerCount,
		&rawChapters,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find book %q/%q: %w", title, source, bookstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find book %q/%q: %w", title, source, classifyError(err))
	}

	book.Chapters = decodeChapters(rawChapters)

	rows, err := s.db.Query(findGenresQuery, title, source)
	if err != nil {
		return nil, fmt.Errorf("find book %q/%q: %w", title, source, classifyError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("find book %q/%q: %w", title, source, classifyError(err))
		}

		book.Genres = append(book.Genres, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find book %q/%q: %w", title, source, classifyError(err))
	}

	return book, nil
}

// Remove deletes a record; its genre associations cascade.
func (s *BookStore) Remove(title, source string) error {
	res, err := s.db.Exec(deleteBooksQuery, title, source)
	if err != nil {
		return fmt.Errorf("remove book %q/%q: %w", title, source, classifyError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove book %q/%q: %w", title, source, classifyError(err))
	}
	if affected == 0 {
		return fmt.Errorf("remove book %q/%q: %w", title, source, bookstore.ErrNotFound)
	}

	return nil
}

// decodeChapters coerces a chapters column value into a ChapterMap. The
// column normally holds a JSON object, but older writers double-encoded it
// as a JSON string; both layouts decode. Anything else yields a nil map,
// which the change detector reads as "changed" and rewrites on the next
// successful scrape.
func decodeChapters(raw []byte) bookstore.ChapterMap {
	if len(raw) == 0 {
		return nil
	}

	var chapters bookstore.ChapterMap
	if err := json.Unmarshal(raw, &chapters); err == nil {
		return chapters
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &chapters); err != nil {
		return nil
	}

	return chapters
}

// classifyError maps driver-level failures onto the bookstore error
// taxonomy: connection-class failures become ErrStoreUnavailable so the
// orchestrator can escalate a streak of them, integrity violations become
// per-book ErrInvalidBook failures.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %s", bookstore.ErrStoreUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s", bookstore.ErrStoreUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "57": // connection exception, operator intervention
			return fmt.Errorf("%w: %s", bookstore.ErrStoreUnavailable, err)
		case "22", "23": // data exception, integrity constraint violation
			return fmt.Errorf("%w: %s", bookstore.ErrInvalidBook, err)
		}
	}

	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS books (
	title TEXT NOT NULL,
	source TEXT NOT NULL,
	synopsis TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	updated_on TEXT NOT NULL DEFAULT '',
	newest_chapter TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	rating TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	follower_count TEXT NOT NULL DEFAULT '',
	chapters JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (title, source)
);

CREATE TABLE IF NOT EXISTS genres (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS book_genres (
	id SERIAL PRIMARY KEY,
	book_title TEXT NOT NULL,
	book_source TEXT NOT NULL,
	genre_id INTEGER NOT NULL REFERENCES genres (id),
	UNIQUE (book_title, book_source, genre_id),
	FOREIGN KEY (book_title, book_source)
		REFERENCES books (title, source) ON DELETE CASCADE
);
`
