package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandiJamlu23/library-app/internal/models"
)

// SampleBooks is the catalog inserted by Seed.
var SampleBooks = []models.Book{
	{
		Title:       "The Great Gatsby",
		Author:      "F. Scott Fitzgerald",
		ImageURL:    "https://static.qobuz.com/images/covers/aa/y3/jqq4w9zaoy3aa_600.jpg",
		Description: "A novel set in the 1920s that tells the story of Jay Gatsby and his unrequited love for Daisy Buchanan.",
	},
	{
		Title:       "To Kill a Mockingbird",
		Author:      "Harper Lee",
		ImageURL:    "https://th.bing.com/th/id/OIP.fAqE1L_Pb64qgodg74ZfRAHaKj?rs=1&pid=ImgDetMain",
		Description: "A novel about the serious issues",
	},
	{
		Title:    "1984",
		Author:   "George Orwell",
		ImageURL: "https://res.cloudinary.com/jerrick/image/upload/d_642250b563292b35f27461a7.png,f_jpg,fl_progressive,q_auto,w_1024/64c78717dbf9e1001d096f33.jpg",
	},
}

// Seed inserts SampleBooks if the book table is empty. It reports how many
// rows were inserted.
func Seed(ctx context.Context, db *sql.DB) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM book)`).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check books: %w", err)
	}
	if exists {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO book (title, author, is_borrowed, image_url, description) VALUES (?, ?, 0, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, b := range SampleBooks {
		if _, err := stmt.ExecContext(ctx, b.Title, b.Author, nullString(b.ImageURL), nullString(b.Description)); err != nil {
			return 0, fmt.Errorf("insert %q: %w", b.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(SampleBooks), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
