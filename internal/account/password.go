// internal/account/password.go
package account

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds enforced on every path that sets a password. bcrypt reads at most 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

func HashPassword(password string, cost int) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// PasswordMatches reports whether input hashes to hash. Only unexpected bcrypt errors are returned.
func PasswordMatches(hash []byte, input string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(hash, []byte(input))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

// DummyCompare spends about as long as a real comparison so unknown emails are not
// distinguishable by timing.
func DummyCompare(input string) {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("mindhaven-dummy"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummy, []byte(input))
}

// ValidatePassword enforces the length bounds of a new password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return errPasswordTooLong
	}
	return nil
}
