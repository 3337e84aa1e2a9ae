package authflow

import (
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinUsernameLength is the minimum accepted username length after trimming.
const MinUsernameLength = 3

// SignUpPayload is the sign-up form payload. Name is optional; a blank name
// falls back to the local part of the email.
type SignUpPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Name     string `form:"name" json:"name"`
}

// Validate will run validation rules
func (p SignUpPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&p.Password,
			validation.Required,
		),
		validation.Field(
			&p.Name,
			validation.Length(0, 200),
		),
	)
}

// CredentialsPayload is the login form payload.
type CredentialsPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (p CredentialsPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&p.Password,
			validation.Required,
		),
	)
}

// UsernamePayload is the username selection form payload.
type UsernamePayload struct {
	Username string `form:"username" json:"username"`
}

// Validate will run validation rules
func (p UsernamePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Username,
			validation.Required,
			validation.By(validateUsernameLength),
		),
	)
}

func validateUsernameLength(value any) error {
	candidate, _ := value.(string)
	if !usernameLongEnough(candidate) {
		return ErrUsernameTooShort
	}
	return nil
}

func usernameLongEnough(candidate string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(candidate)) >= MinUsernameLength
}
