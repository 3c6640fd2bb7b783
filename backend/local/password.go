package local

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost used to hash new passwords.
var DefaultBcryptCost = 12

var errEmptyPassword = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode("PASSWORD_REQUIRED").
	WithCode(goerrors.CodeBadRequest)

var errPasswordTooLong = goerrors.New("password exceeds 72 bytes", goerrors.CategoryValidation).
	WithTextCode("PASSWORD_TOO_LONG").
	WithCode(goerrors.CodeBadRequest)

var errMismatchedHashAndPassword = errors.New("password does not match hash")

func hashPassword(password string, cost int) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", errPasswordTooLong
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// comparePasswordAndHash validates the cleartext password against hash.
func comparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
