package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Error struct {
	code    int
	message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("http error %v: %v", e.code, e.message)
}

func (e *Error) Code() int       { return e.code }
func (e *Error) Message() string { return e.message }

// Temporary reports whether the request may succeed if repeated.
func (e *Error) Temporary() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func MakeError(code int, message string) error {
	return &Error{code: code, message: message}
}

const maxErrorBody = 4096

func ErrorFromResponse(rsp *http.Response) error {
	if 200 <= rsp.StatusCode && rsp.StatusCode <= 299 {
		return nil
	}
	var b strings.Builder
	_, err := io.Copy(&b, io.LimitReader(rsp.Body, maxErrorBody))
	return errors.Join(MakeError(rsp.StatusCode, b.String()), err)
}

func IsTemporary(err error) bool {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}

func WriteErrorResponse(err error, w http.ResponseWriter) error {
	var (
		httpErr *Error
		code    int
		message string
	)
	if errors.As(err, &httpErr) {
		code = httpErr.code
		message = httpErr.message
	} else {
		code = http.StatusInternalServerError
		message = fmt.Sprintf("internal server error: %v", err)
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	if _, err := io.WriteString(w, message); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
