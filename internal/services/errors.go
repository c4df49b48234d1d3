package services

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrAlreadyBorrowed  = errors.New("book is already borrowed")
	ErrAlreadyAvailable = errors.New("book is already available")
)
