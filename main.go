package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sandiJamlu23/library-app/internal/api"
	"github.com/sandiJamlu23/library-app/internal/auth"
	"github.com/sandiJamlu23/library-app/internal/config"
	"github.com/sandiJamlu23/library-app/internal/database"
	"github.com/sandiJamlu23/library-app/internal/logger"
	"github.com/sandiJamlu23/library-app/internal/services"
	"github.com/sandiJamlu23/library-app/internal/views"
	"golang.org/x/sync/errgroup"
)

func main() {
	seed := flag.Bool("seed", false, "insert the sample books if the catalog is empty")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}
	if *seed {
		n, err := database.Seed(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed books")
		}
		log.Info().Int("books", n).Msg("Catalog seeded")
	}

	// Set up auth
	if cfg.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET is not set; sessions will not survive a restart")
	}
	signer, err := auth.NewSigner(cfg.SessionSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session signer")
	}

	userService := services.NewUserService(db)
	bookService := services.NewBookService(db)
	manager := auth.NewManager(
		userService,
		auth.NewBcryptHasher(),
		auth.NewSessionStore(cfg.SessionTTL),
		signer,
		auth.CookieOptions{Name: cfg.SessionCookie, Secure: cfg.IsProduction()},
	)

	renderer, err := views.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load templates")
	}

	// Set up router
	router := api.NewRouter(api.Deps{
		DB:          db,
		Books:       bookService,
		Auth:        manager,
		Views:       renderer,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server exiting")
}
