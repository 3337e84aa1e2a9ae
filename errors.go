package authflow

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEmailTaken         = "flow_email_taken"
	TextCodeInvalidEmail       = "flow_invalid_email"
	TextCodeWeakPassword       = "flow_weak_password"
	TextCodeInvalidCredentials = "flow_invalid_credentials"
	TextCodePopupClosed        = "flow_popup_closed"
	TextCodeCredentialInUse    = "flow_credential_in_use"
	TextCodeUsernameTooShort   = "flow_username_too_short"
	TextCodeUsernameTaken      = "flow_username_taken"
	TextCodeRecordNotFound     = "flow_record_not_found"
	TextCodeStoreFailure       = "flow_store_failure"
)

// ErrEmailTaken is returned by sign-up when the email already has an account.
var ErrEmailTaken = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidEmail is returned by sign-up for a malformed email address.
var ErrInvalidEmail = goerrors.New("invalid email address", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrWeakPassword is returned by sign-up when the service rejects the password.
var ErrWeakPassword = goerrors.New("password does not meet requirements", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials is the single generic login failure. Wrong password,
// unknown account, and malformed credential all collapse into it so the
// login path cannot be used to enumerate accounts.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrPopupClosed is returned when the user dismisses the federated consent
// popup. It is informational: logged, never alerted.
var ErrPopupClosed = goerrors.New("sign-in popup closed by user", goerrors.CategoryAuth).
	WithTextCode(TextCodePopupClosed).
	WithCode(goerrors.CodeBadRequest)

// ErrCredentialInUse is returned when a federated sign-in collides with an
// account created through a different method.
var ErrCredentialInUse = goerrors.New("account exists with different credential", goerrors.CategoryConflict).
	WithTextCode(TextCodeCredentialInUse).
	WithCode(goerrors.CodeConflict)

// ErrUsernameTooShort rejects candidates under the minimum length. Local
// check, no remote call is made.
var ErrUsernameTooShort = goerrors.New("username must be at least 3 characters", goerrors.CategoryValidation).
	WithTextCode(TextCodeUsernameTooShort).
	WithCode(goerrors.CodeBadRequest)

// ErrUsernameTaken is returned when the candidate username already belongs
// to another account record.
var ErrUsernameTaken = goerrors.New("username already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrRecordNotFound is returned for a point read of a missing account record.
var ErrRecordNotFound = goerrors.New("account record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrStoreFailure wraps record store reads, writes, and queries that fail
// for operational reasons.
var ErrStoreFailure = goerrors.New("account record store failure", goerrors.CategoryOperation).
	WithTextCode(TextCodeStoreFailure).
	WithCode(goerrors.CodeInternal)

// ErrorMessage returns the human-readable message of a rich error. Error()
// renders the category and text code alongside the message; user-facing
// surfaces want the message alone. Plain errors fall back to Error().
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}

	return err.Error()
}

// IsCredentialError matches the credential failure family: duplicate email,
// malformed email, weak password, and rejected login credentials.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrInvalidCredentials)
}

// IsPopupClosed matches a user-cancelled federated popup.
func IsPopupClosed(err error) bool {
	return errors.Is(err, ErrPopupClosed)
}

// IsCredentialInUse matches the account-exists-with-different-credential case.
func IsCredentialInUse(err error) bool {
	return errors.Is(err, ErrCredentialInUse)
}

// IsUsernameTaken matches a lost uniqueness check or a lost reservation race.
func IsUsernameTaken(err error) bool {
	return errors.Is(err, ErrUsernameTaken)
}

// IsRecordNotFound matches a missing account record.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
