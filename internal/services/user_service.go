package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sandiJamlu23/library-app/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
}

// UserService provides persistence for user accounts.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, username, password FROM user WHERE id = ?", id)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUserByUsername retrieves a single user by exact username, including the
// password hash.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, username, password FROM user WHERE username = ?", username)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser stores a new user with an already hashed password. The UNIQUE
// constraint on username decides conflicts, so concurrent registrations of one
// name cannot both succeed.
func (s *UserService) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO user (username, password) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("user %q: %w", username, ErrUsernameTaken)
		}
		return models.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, err
	}
	return models.User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// CountUsersByUsername reports how many rows carry username.
func (s *UserService) CountUsersByUsername(ctx context.Context, username string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user WHERE username = ?", username).Scan(&n)
	return n, err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Extended codes disabled.
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
