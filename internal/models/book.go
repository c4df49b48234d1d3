package models

// BookStatus is the borrow state of a book.
type BookStatus string

const (
	StatusAvailable BookStatus = "Available"
	StatusBorrowed  BookStatus = "Borrowed"
)

// Book represents a catalog entry.
type Book struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	IsBorrowed  bool   `json:"isBorrowed"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

// Status maps the borrowed flag onto the two-state lifecycle.
func (b Book) Status() BookStatus {
	if b.IsBorrowed {
		return StatusBorrowed
	}
	return StatusAvailable
}
