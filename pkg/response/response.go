package response

import (
	"errors"
	"net/http"
)

type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// StatusCode returns the HTTP status carried by err, or 500 when err does not
// wrap an *Error.
func StatusCode(err error) int {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Code
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether err maps to a 4xx status.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}
