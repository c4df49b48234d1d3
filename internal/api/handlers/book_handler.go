package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/sandiJamlu23/library-app/internal/auth"
	"github.com/sandiJamlu23/library-app/internal/models"
	"github.com/sandiJamlu23/library-app/internal/services"
	"github.com/sandiJamlu23/library-app/internal/views"
)

const (
	msgBorrowed         = "Book borrowed successfully."
	msgAlreadyBorrowed  = "This book is already borrowed."
	msgReturned         = "Book returned successfully."
	msgAlreadyAvailable = "This book is already available."
	msgBookNotFound     = "Book not found."
)

// BookHandler handles HTTP requests for the catalog and lending.
type BookHandler struct {
	pages
	service services.BookServiceProvider
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(service services.BookServiceProvider, manager auth.ManagerProvider, renderer PageRenderer) *BookHandler {
	return &BookHandler{pages: pages{auth: manager, views: renderer}, service: service}
}

// List renders the catalog, filtered by the search value from the query
// string or form body.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	search := r.FormValue("search")
	books, err := h.service.ListBooks(r.Context(), search)
	if err != nil {
		log.Error().Err(err).Str("search", search).Msg("Failed to list books")
		h.serverError(w, r)
		return
	}
	h.render(w, r, http.StatusOK, views.PageBooks, views.Data{
		"Books":  books,
		"Search": search,
	})
}

// BorrowForm renders the borrow confirmation page.
func (h *BookHandler) BorrowForm(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, views.PageBorrow)
}

// ReturnForm renders the return confirmation page.
func (h *BookHandler) ReturnForm(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, views.PageReturn)
}

// Borrow marks the book as borrowed and redirects to the listing.
func (h *BookHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "borrow", h.service.Borrow, services.ErrAlreadyBorrowed, msgBorrowed, msgAlreadyBorrowed)
}

// Return marks the book as available and redirects to the listing.
func (h *BookHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "return", h.service.Return, services.ErrAlreadyAvailable, msgReturned, msgAlreadyAvailable)
}

func (h *BookHandler) confirm(w http.ResponseWriter, r *http.Request, page string) {
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, msgBookNotFound)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.notFound(w, r, msgBookNotFound)
			return
		}
		log.Error().Err(err).Int64("book_id", id).Msg("Failed to get book")
		h.serverError(w, r)
		return
	}
	h.render(w, r, http.StatusOK, page, views.Data{"Book": book})
}

type transitionFunc func(ctx context.Context, id int64) (models.Book, error)

func (h *BookHandler) transition(w http.ResponseWriter, r *http.Request, action string, apply transitionFunc, rejected error, okMsg, rejectedMsg string) {
	user, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, msgBookNotFound)
		return
	}

	_, err := apply(r.Context(), id)
	switch {
	case err == nil:
		log.Info().Int64("book_id", id).Int64("user_id", user.ID).Str("action", action).Msg("Book state changed")
		h.redirectWithFlash(w, r, "/books", okMsg)
	case errors.Is(err, rejected):
		h.redirectWithFlash(w, r, "/books", rejectedMsg)
	case errors.Is(err, services.ErrNotFound):
		h.notFound(w, r, msgBookNotFound)
	default:
		log.Error().Err(err).Int64("book_id", id).Str("action", action).Msg("Failed to change book state")
		h.serverError(w, r)
	}
}

func bookID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
