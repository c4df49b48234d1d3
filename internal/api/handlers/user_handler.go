package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sandiJamlu23/library-app/internal/auth"
	"github.com/sandiJamlu23/library-app/internal/services"
	"github.com/sandiJamlu23/library-app/internal/views"
)

const (
	msgRegistered         = "Registration successful. Please log in."
	msgUsernameTaken      = "That username is already taken."
	msgInvalidCredentials = "Invalid username or password."
	msgLoggedOut          = "You have been logged out."
)

// UserHandler handles registration, login and logout.
type UserHandler struct {
	pages
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(manager auth.ManagerProvider, renderer PageRenderer) *UserHandler {
	return &UserHandler{pages: pages{auth: manager, views: renderer}}
}

// RegisterForm renders the registration form.
func (h *UserHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfAuthenticated(w, r) {
		return
	}
	h.render(w, r, http.StatusOK, views.PageRegister, nil)
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfAuthenticated(w, r) {
		return
	}
	username := r.PostFormValue("username")
	_, err := h.auth.Register(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			h.formError(w, r, views.PageRegister, username, verr.Message)
		case errors.Is(err, services.ErrUsernameTaken):
			h.formError(w, r, views.PageRegister, username, msgUsernameTaken)
		default:
			log.Error().Err(err).Str("username", username).Msg("Failed to register user")
			h.serverError(w, r)
		}
		return
	}
	h.redirectWithFlash(w, r, "/login", msgRegistered)
}

// LoginForm renders the login form.
func (h *UserHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfAuthenticated(w, r) {
		return
	}
	h.render(w, r, http.StatusOK, views.PageLogin, nil)
}

// Login authenticates the user and starts a session.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfAuthenticated(w, r) {
		return
	}
	username := r.PostFormValue("username")
	user, err := h.auth.Login(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Warn().Str("username", username).Msg("Failed authentication attempt")
			h.formError(w, r, views.PageLogin, username, msgInvalidCredentials)
			return
		}
		log.Error().Err(err).Str("username", username).Msg("Failed to authenticate user")
		h.serverError(w, r)
		return
	}

	if err := h.auth.Start(w, r, user.ID); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to start session")
		h.serverError(w, r)
		return
	}
	http.Redirect(w, r, "/books", http.StatusFound)
}

// Logout clears the session.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}
	h.auth.Logout(w, r)
	h.redirectWithFlash(w, r, "/", msgLoggedOut)
}

func (h *UserHandler) formError(w http.ResponseWriter, r *http.Request, page, username, msg string) {
	h.render(w, r, http.StatusOK, page, views.Data{
		"Username": username,
		"Error":    msg,
	})
}

func (h *UserHandler) redirectIfAuthenticated(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := h.auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/books", http.StatusFound)
		return true
	}
	return false
}
