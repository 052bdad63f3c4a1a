package session

import "errors"

const (
	forbiddenMessage = "Login successful, but you are not an administrator."
	deniedMessage    = "Logged in as a regular user. Admin access denied."
)

// ErrForbidden marks a successful login by an account without admin rights
var ErrForbidden = errors.New("administrator privileges required")

// AuthError is returned when a login is rejected by the server or succeeds
// without the privileges the console requires.
type AuthError struct {
	Message   string
	Status    int
	Forbidden bool
	Err       error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsForbidden reports whether err is a privileged-surface rejection
func IsForbidden(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Forbidden
}
