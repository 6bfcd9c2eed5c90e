package auth

import "errors"

var (
	// ErrMissingCredentials indicates email or password was not supplied.
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrMissingRefreshToken indicates the refresh request carried no token.
	ErrMissingRefreshToken = errors.New("refresh token is required")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound indicates a token referenced a user that no longer exists.
	ErrUserNotFound = errors.New("user not found")

	ErrInactiveUser  = errors.New("inactive user")
	ErrForbiddenRole = errors.New("you do not have permission to access this resource")
	ErrNoBranch      = errors.New("user has no branch assigned")
)

// Kind groups errors by how the HTTP boundary reports them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
)

// KindOf classifies err. Unrecognised errors are internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrMissingRefreshToken):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUserNotFound):
		return KindAuthentication
	case errors.Is(err, ErrInactiveUser), errors.Is(err, ErrForbiddenRole), errors.Is(err, ErrNoBranch):
		return KindAuthorization
	default:
		return KindInternal
	}
}
