package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sandiJamlu23/library-app/internal/models"
)

// BookServiceProvider defines the interface for catalog and lending operations.
type BookServiceProvider interface {
	GetBook(ctx context.Context, id int64) (models.Book, error)
	ListBooks(ctx context.Context, search string) ([]models.Book, error)
	SetBorrowed(ctx context.Context, id int64, borrowed bool) (models.Book, error)
	Borrow(ctx context.Context, id int64) (models.Book, error)
	Return(ctx context.Context, id int64) (models.Book, error)
}

// BookService provides business logic for the book catalog.
type BookService struct {
	db *sql.DB
}

// NewBookService creates a new BookService.
func NewBookService(db *sql.DB) *BookService {
	return &BookService{db: db}
}

const bookColumns = `id, title, author, is_borrowed, COALESCE(image_url, ''), COALESCE(description, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.IsBorrowed, &b.ImageURL, &b.Description)
	return b, err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBook(ctx context.Context, q queryRower, id int64) (models.Book, error) {
	b, err := scanBook(q.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM book WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Book{}, fmt.Errorf("book %d: %w", id, ErrNotFound)
		}
		return models.Book{}, err
	}
	return b, nil
}

// GetBook retrieves a single book by its ID.
func (s *BookService) GetBook(ctx context.Context, id int64) (models.Book, error) {
	return getBook(ctx, s.db, id)
}

// ListBooks returns all books, or only those whose title or author contains
// search when search is non-blank. Matching ignores case for ASCII letters
// only, since that is what SQLite LIKE folds.
func (s *BookService) ListBooks(ctx context.Context, search string) ([]models.Book, error) {
	query := "SELECT " + bookColumns + " FROM book"
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		query += ` WHERE title LIKE ? ESCAPE '\' OR author LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// SetBorrowed writes the borrowed flag unconditionally.
func (s *BookService) SetBorrowed(ctx context.Context, id int64, borrowed bool) (models.Book, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE book SET is_borrowed = ? WHERE id = ?", borrowed, id)
	if err != nil {
		return models.Book{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Book{}, err
	} else if n == 0 {
		return models.Book{}, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return s.GetBook(ctx, id)
}

// Borrow moves an available book to borrowed. ErrAlreadyBorrowed is returned,
// with the current book, when it was not available.
func (s *BookService) Borrow(ctx context.Context, id int64) (models.Book, error) {
	return s.transition(ctx, id, true, ErrAlreadyBorrowed)
}

// Return moves a borrowed book back to available. ErrAlreadyAvailable is
// returned, with the current book, when it was not borrowed.
func (s *BookService) Return(ctx context.Context, id int64) (models.Book, error) {
	return s.transition(ctx, id, false, ErrAlreadyAvailable)
}

// transition flips is_borrowed to the target value only if it currently holds
// the opposite value. The conditional update and the follow-up read share one
// transaction.
func (s *BookService) transition(ctx context.Context, id int64, target bool, rejected error) (models.Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Book{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE book SET is_borrowed = ? WHERE id = ? AND is_borrowed = ?", target, id, !target)
	if err != nil {
		return models.Book{}, err
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return models.Book{}, err
	}

	book, err := getBook(ctx, tx, id)
	if err != nil {
		return models.Book{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Book{}, err
	}
	if changed == 0 {
		return book, fmt.Errorf("book %d: %w", id, rejected)
	}
	return book, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
