package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// BcryptHasher is a PasswordHasher backed by bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using bcrypt.DefaultCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
