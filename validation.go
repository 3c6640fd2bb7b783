package workshop

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

// MinPasswordLength and MaxPasswordLength bound passwords on sign up. The
// upper bound is the bcrypt input limit.
var (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

type credentials struct {
	Email    string
	Password string
}

func newCredentials(email, password string) credentials {
	return credentials{
		Email:    strings.TrimSpace(email),
		Password: password,
	}
}

func (c credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Password, validation.Required),
	)
}

type registration struct {
	Email       string
	Password    string
	DisplayName string
}

func newRegistration(email, password, name string) registration {
	email = strings.TrimSpace(email)
	return registration{
		Email:       email,
		Password:    password,
		DisplayName: displayNameFor(name, email),
	}
}

func (r registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 120)),
	)
}

type emailAddress struct {
	Email string
}

func (e emailAddress) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.EmailFormat),
	)
}

func validate(v validation.Validatable, message string) error {
	if verr := goerrors.ValidateWithOzzo(v.Validate, message); verr != nil {
		return verr
	}
	return nil
}

// displayNameFor falls back to the local part of the email.
func displayNameFor(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}

	if strings.Contains(email, "@") {
		name = strings.Split(email, "@")[0]
	}

	return name
}
