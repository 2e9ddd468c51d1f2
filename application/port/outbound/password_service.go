package outbound

// PasswordService hashes and verifies user secrets.
type PasswordService interface {
	HashPassword(password string) (string, error)
	// VerifyPassword reports whether password matches hash. A malformed or
	// empty hash is a mismatch, not an error.
	VerifyPassword(password, hash string) bool
}
