package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sandiJamlu23/library-app/internal/auth"
	"github.com/sandiJamlu23/library-app/internal/models"
	"github.com/sandiJamlu23/library-app/internal/views"
)

// PageRenderer renders a named page with a data bag.
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, page string, data views.Data) error
}

// pages adds the per-request layout values (current user, flashes) to every
// rendered page.
type pages struct {
	auth  auth.ManagerProvider
	views PageRenderer
}

func (p pages) render(w http.ResponseWriter, r *http.Request, status int, page string, data views.Data) {
	if data == nil {
		data = views.Data{}
	}
	if user, ok := p.auth.CurrentUser(r); ok {
		data["User"] = &user
	}
	data["Flashes"] = p.auth.PopFlashes(r)

	if err := p.views.Render(w, status, page, data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("Failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (p pages) errorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.render(w, r, status, views.PageError, views.Data{
		"Status":     status,
		"StatusText": http.StatusText(status),
		"Message":    message,
	})
}

func (p pages) notFound(w http.ResponseWriter, r *http.Request, message string) {
	p.errorPage(w, r, http.StatusNotFound, message)
}

func (p pages) serverError(w http.ResponseWriter, r *http.Request) {
	p.errorPage(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

// redirectWithFlash queues msg and sends a 302 to target.
func (p pages) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, msg string) {
	if msg != "" {
		if err := p.auth.AddFlash(w, r, msg); err != nil {
			log.Warn().Err(err).Msg("Failed to queue flash message")
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// requireAuth is the guard at the top of protected handlers. It reports false
// after answering the request itself.
func (p pages) requireAuth(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := p.auth.RequireAuth(r)
	if err == nil {
		return user, true
	}
	if errors.Is(err, auth.ErrUnauthenticated) {
		p.redirectWithFlash(w, r, "/login", "Please log in to continue.")
		return models.User{}, false
	}
	log.Error().Err(err).Msg("Failed to load current user")
	p.serverError(w, r)
	return models.User{}, false
}
