package api

import (
	"database/sql"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sandiJamlu23/library-app/internal/api/handlers"
	"github.com/sandiJamlu23/library-app/internal/auth"
	"github.com/sandiJamlu23/library-app/internal/services"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB          *sql.DB
	Books       services.BookServiceProvider
	Auth        auth.ManagerProvider
	Views       handlers.PageRenderer
	CORSOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(d.Auth.Middleware)

	// Initialize handlers
	pageHandler := handlers.NewPageHandler(d.DB, d.Auth, d.Views)
	userHandler := handlers.NewUserHandler(d.Auth, d.Views)
	bookHandler := handlers.NewBookHandler(d.Books, d.Auth, d.Views)

	r.NotFound(pageHandler.NotFound)

	r.Get("/", pageHandler.Index)
	r.Get("/healthz", pageHandler.Healthz)

	r.Get("/register", userHandler.RegisterForm)
	r.Post("/register", userHandler.Register)
	r.Get("/login", userHandler.LoginForm)
	r.Post("/login", userHandler.Login)
	r.Get("/logout", userHandler.Logout)

	r.Get("/books", bookHandler.List)
	r.Post("/books", bookHandler.List)

	r.Get("/borrow/{id}", bookHandler.BorrowForm)
	r.Post("/borrow/{id}", bookHandler.Borrow)
	r.Get("/return/{id}", bookHandler.ReturnForm)
	r.Post("/return/{id}", bookHandler.Return)

	return r
}
