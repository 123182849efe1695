package auth

import (
	"errors"

	"github.com/tripledger/tripledger/internal/platform/validation"
)

var (
	// ErrInvalidCredentials is returned when the backend rejects an email/password pair.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrNotSignedIn is returned by operations that need a session when there is none.
	ErrNotSignedIn = errors.New("auth: not signed in")
)

func validateInput(v any) error {
	return validation.Struct(v)
}
