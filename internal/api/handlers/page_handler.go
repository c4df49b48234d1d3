package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sandiJamlu23/library-app/internal/auth"
	"github.com/sandiJamlu23/library-app/internal/views"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PageHandler serves the landing page, the not-found page and the health probe.
type PageHandler struct {
	pages
	db Pinger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(db Pinger, manager auth.ManagerProvider, renderer PageRenderer) *PageHandler {
	return &PageHandler{pages: pages{auth: manager, views: renderer}, db: db}
}

// Index renders the landing page.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.PageIndex, nil)
}

// NotFound renders the 404 page for unknown routes.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound(w, r, "The page you requested does not exist.")
}

// Healthz answers 200 when the database responds.
func (h *PageHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.db.PingContext(r.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unavailable\n"))
		return
	}
	w.Write([]byte("ok\n"))
}
