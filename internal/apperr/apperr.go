// Package apperr описывает таксономию ошибок API-шлюза и их отображение на HTTP-статусы.
package apperr

import (
	"errors"
	"net/http"
)

// Коды ошибок, которые понимает HTTP-слой.
const (
	EUnauthenticated = "unauthenticated"
	EForbidden       = "forbidden"
	ENotFound        = "not found"
	EInvalid         = "invalid"
	EUnavailable     = "unavailable"
	EInternal        = "internal error"
)

// Error: ошибка с кодом таксономии, сообщением для клиента и исходной причиной.
type Error struct {
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return "<" + e.Code + ">"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку с указанным кодом и сообщением.
func New(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap создаёт ошибку с кодом, сообщением и причиной.
func Wrap(code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Короткие конструкторы для каждого кода таксономии.
func Unauthenticated(msg string) *Error { return New(EUnauthenticated, msg) }

func Forbidden(msg string) *Error { return New(EForbidden, msg) }

func NotFound(msg string) *Error { return New(ENotFound, msg) }

func Invalid(msg string) *Error { return New(EInvalid, msg) }

func Unavailable(msg string, err error) *Error { return Wrap(EUnavailable, msg, err) }

func Internal(msg string, err error) *Error { return Wrap(EInternal, msg, err) }

// Code возвращает код первой ошибки таксономии в цепочке или EInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return EInternal
}

// Is сообщает, относится ли ошибка к указанному коду.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

var statusCodes = map[string]int{
	EUnauthenticated: http.StatusUnauthorized,
	EForbidden:       http.StatusForbidden,
	ENotFound:        http.StatusNotFound,
	EInvalid:         http.StatusBadRequest,
	EUnavailable:     http.StatusServiceUnavailable,
	EInternal:        http.StatusInternalServerError,
}

// StatusCode отображает ошибку на HTTP-статус.
func StatusCode(err error) int {
	if code, ok := statusCodes[Code(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Message возвращает текст, безопасный для отправки клиенту: только Msg, без причины.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusText(http.StatusInternalServerError)
	}
	if e.Msg == "" {
		return http.StatusText(StatusCode(err))
	}
	return e.Msg
}
