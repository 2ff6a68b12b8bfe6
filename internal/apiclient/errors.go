package apiclient

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNetwork        Kind = "NetworkError"
	KindSessionExpired Kind = "SessionExpired"
	KindServer         Kind = "ServerError"
	KindClient         Kind = "ClientError"
	KindDecode         Kind = "DecodeError"
)

// ErrSessionExpired совпадает через errors.Is с любой APIError вида SessionExpired.
var ErrSessionExpired = errors.New("session expired")

type APIError struct {
	Kind    Kind
	Status  int
	Method  string
	Path    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Method, e.Path, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Kind, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return target == ErrSessionExpired && e.Kind == KindSessionExpired
}

// Retryable сетевые ошибки и 5xx; повторять ли запрос решает вызывающий код.
func (e *APIError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// KindOf возвращает вид ошибки или пустую строку, если это не APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}
