package identity

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

var dummyHash struct {
	sync.Once
	value string
}

// dummyPasswordHash returns a hash no password matches. Comparing against
// it keeps a miss on the account lookup as slow as a wrong password.
func dummyPasswordHash() string {
	dummyHash.Do(func() { dummyHash.value = RandomPasswordHash() })
	return dummyHash.value
}

// GenerateCode produces a numeric one-time code of the given length.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 {
		return "", errors.New("code length must be positive", errors.CategoryValidation)
	}

	out := make([]byte, digits)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "failed to read random source")
		}
		out[i] = byte('0' + n.Int64())
	}
	return string(out), nil
}
