package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sandiJamlu23/library-app/internal/models"
	"github.com/sandiJamlu23/library-app/internal/services"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidInput       = errors.New("invalid input")
)

// ValidationError describes why registration input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

type credentials struct {
	Username string `validate:"required,min=3,max=80"`
	Password string `validate:"required,min=6,max=72"`
}

// ManagerProvider defines the interface handlers use for accounts and sessions.
type ManagerProvider interface {
	Register(ctx context.Context, username, password string) (models.User, error)
	Login(ctx context.Context, username, password string) (models.User, error)
	Start(w http.ResponseWriter, r *http.Request, userID int64) error
	Logout(w http.ResponseWriter, r *http.Request)
	RequireAuth(r *http.Request) (models.User, error)
	CurrentUser(r *http.Request) (models.User, bool)
	AddFlash(w http.ResponseWriter, r *http.Request, msg string) error
	PopFlashes(r *http.Request) []string
	Middleware(next http.Handler) http.Handler
}

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// Manager registers and authenticates users and tracks the current user of a
// browser session through a signed cookie.
type Manager struct {
	users    services.UserServiceProvider
	hasher   PasswordHasher
	sessions *SessionStore
	signer   *Signer
	cookie   CookieOptions
	validate *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// NewManager creates a new Manager.
func NewManager(users services.UserServiceProvider, hasher PasswordHasher, sessions *SessionStore, signer *Signer, cookie CookieOptions) *Manager {
	return &Manager{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		signer:   signer,
		cookie:   cookie,
		validate: validator.New(),
	}
}

// Register validates the input, hashes the password and stores a new user.
func (m *Manager) Register(ctx context.Context, username, password string) (models.User, error) {
	in := credentials{Username: strings.TrimSpace(username), Password: password}
	if err := m.validate.Struct(in); err != nil {
		return models.User{}, toValidationError(err)
	}
	if len(in.Password) > maxPasswordBytes {
		return models.User{}, &ValidationError{Field: "password", Message: "Password is too long."}
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := m.users.CreateUser(ctx, in.Username, hash)
	if err != nil {
		return models.User{}, err
	}
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	return user, nil
}

// Login verifies a username and password. A missing user and a wrong password
// both yield ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, username, password string) (models.User, error) {
	user, err := m.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// Keep the response time close to a real comparison.
			m.hasher.Check(password, m.placeholderHash())
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if !m.hasher.Check(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (m *Manager) placeholderHash() string {
	m.dummyOnce.Do(func() {
		if h, err := m.hasher.Hash("placeholder-password"); err == nil {
			m.dummyHash = h
		}
	})
	return m.dummyHash
}

// Start binds a fresh session to userID and sets its cookie. Any session the
// request already carried is discarded.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, userID int64) error {
	if id, ok := m.sessionID(r); ok {
		m.sessions.Delete(id)
	}
	sess := m.sessions.Create(userID)
	if err := m.setCookie(w, sess); err != nil {
		m.sessions.Delete(sess.ID)
		return err
	}
	bindSession(r, sess.ID)
	return nil
}

// Logout deletes the session and expires its cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := m.sessionID(r); ok {
		m.sessions.Delete(id)
	}
	bindSession(r, "")
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAuth returns the authenticated user of the request or
// ErrUnauthenticated. The user is loaded once per request.
func (m *Manager) RequireAuth(r *http.Request) (models.User, error) {
	holder, _ := r.Context().Value(sessionKey).(*sessionHolder)
	if holder != nil && holder.user != nil {
		return *holder.user, nil
	}
	id, ok := m.sessionID(r)
	if !ok {
		return models.User{}, ErrUnauthenticated
	}
	sess, ok := m.sessions.Get(id)
	if !ok || sess.UserID == 0 {
		return models.User{}, ErrUnauthenticated
	}
	user, err := m.users.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return models.User{}, ErrUnauthenticated
		}
		return models.User{}, err
	}
	if holder != nil {
		holder.user = &user
	}
	return user, nil
}

// CurrentUser is RequireAuth without the error detail.
func (m *Manager) CurrentUser(r *http.Request) (models.User, bool) {
	user, err := m.RequireAuth(r)
	return user, err == nil
}

// AddFlash queues a message for the next page the visitor sees, starting an
// anonymous session if the request has none.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	if id, ok := m.sessionID(r); ok && m.sessions.AddFlash(id, msg) {
		return nil
	}
	sess := m.sessions.Create(0)
	if err := m.setCookie(w, sess); err != nil {
		m.sessions.Delete(sess.ID)
		return err
	}
	bindSession(r, sess.ID)
	m.sessions.AddFlash(sess.ID, msg)
	return nil
}

// PopFlashes returns and clears the queued messages.
func (m *Manager) PopFlashes(r *http.Request) []string {
	id, ok := m.sessionID(r)
	if !ok {
		return nil
	}
	return m.sessions.PopFlashes(id)
}

// Middleware resolves the session cookie once per request and stores the
// result in the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &sessionHolder{}
		if id, ok := m.cookieSessionID(r); ok {
			holder.id = id
		}
		ctx := context.WithValue(r.Context(), sessionKey, holder)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) setCookie(w http.ResponseWriter, sess Session) error {
	token, err := m.signer.Sign(sess.ID, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	if holder, ok := r.Context().Value(sessionKey).(*sessionHolder); ok {
		return holder.id, holder.id != ""
	}
	return m.cookieSessionID(r)
}

func (m *Manager) cookieSessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookie.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := m.signer.Parse(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring invalid session cookie")
		return "", false
	}
	return id, true
}

type contextKey string

const sessionKey = contextKey("session")

// sessionHolder lets handlers rebind the session mid-request, e.g. after
// login or when a flash creates an anonymous session.
type sessionHolder struct {
	id   string
	user *models.User
}

func bindSession(r *http.Request, id string) {
	if holder, ok := r.Context().Value(sessionKey).(*sessionHolder); ok {
		holder.id = id
		holder.user = nil
	}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "required" {
			return &ValidationError{Field: "username", Message: "Username is required."}
		}
		return &ValidationError{Field: "username", Message: "Username must be between 3 and 80 characters."}
	default:
		if fe.Tag() == "required" {
			return &ValidationError{Field: "password", Message: "Password is required."}
		}
		return &ValidationError{Field: "password", Message: "Password must be between 6 and 72 characters."}
	}
}
