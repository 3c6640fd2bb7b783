package workshop

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeAccountExists      = "ACCOUNT_EXISTS"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeNoSession          = "NO_SESSION"
	TextCodeSessionExpired     = "SESSION_EXPIRED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	TextCodeProfileExists      = "PROFILE_EXISTS"
	TextCodeAlreadyInitialized = "STORE_ALREADY_INITIALIZED"
)

// ErrInvalidCredentials is returned when the backend rejects an email/password pair.
var ErrInvalidCredentials = goerrors.New("invalid login credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountExists is returned when signing up with an email that is taken.
var ErrAccountExists = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(goerrors.CodeConflict)

// ErrTooManyAttempts is returned while an account or email is cooling down.
var ErrTooManyAttempts = goerrors.New("too many attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(goerrors.CodeTooManyRequests)

// ErrNoSession is returned by operations that need a live session.
var ErrNoSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned for expired or revoked tokens.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when a caller touches a row it does not own.
var ErrForbidden = goerrors.New("operation not permitted for this identity", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrProfileNotFound is the benign "no row" result of a profile lookup.
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrProfileExists is returned when inserting a second profile for an owner.
var ErrProfileExists = goerrors.New("profile already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeProfileExists).
	WithCode(goerrors.CodeConflict)

// ErrAlreadyInitialized is returned by Store.Initialize while a subscription is live.
var ErrAlreadyInitialized = goerrors.New("store already initialized", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyInitialized).
	WithCode(goerrors.CodeConflict)

// HasTextCode reports whether err, or any rich error it wraps, carries code.
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = richErr.Source
	}
	return false
}

func IsInvalidCredentials(err error) bool {
	return HasTextCode(err, TextCodeInvalidCredentials)
}

func IsAccountExists(err error) bool {
	return HasTextCode(err, TextCodeAccountExists)
}

func IsProfileNotFound(err error) bool {
	return HasTextCode(err, TextCodeProfileNotFound)
}

func IsProfileExists(err error) bool {
	return HasTextCode(err, TextCodeProfileExists)
}

func IsSessionExpired(err error) bool {
	return HasTextCode(err, TextCodeSessionExpired) || HasTextCode(err, TextCodeNoSession)
}

// external wraps an unexpected backend failure, keeping rich errors as they are.
func external(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, message)
}
