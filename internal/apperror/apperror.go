package apperror

import (
	"errors"
	"net/http"
)

// Kind категория ошибки, по которой обработчики выбирают HTTP статус
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindUnprocessable Kind = "unprocessable"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindForbidden     Kind = "forbidden"
)

var statusByKind = map[Kind]int{
	KindNotFound:      http.StatusNotFound,
	KindValidation:    http.StatusBadRequest,
	KindConflict:      http.StatusConflict,
	KindUnprocessable: http.StatusUnprocessableEntity,
	KindQuotaExceeded: http.StatusForbidden,
	KindForbidden:     http.StatusForbidden,
}

// HTTPStatus возвращает статус ответа для категории; неизвестная категория считается внутренней ошибкой
func (k Kind) HTTPStatus() int {
	if status, ok := statusByKind[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error типизированная ошибка сервисного слоя.
// Msg отдается клиенту как есть, поэтому не должен содержать деталей хранилища.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New создает ошибку указанной категории
func New(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string, err error) error      { return New(KindNotFound, msg, err) }
func Validation(msg string, err error) error    { return New(KindValidation, msg, err) }
func Conflict(msg string, err error) error      { return New(KindConflict, msg, err) }
func Unprocessable(msg string, err error) error { return New(KindUnprocessable, msg, err) }
func QuotaExceeded(msg string, err error) error { return New(KindQuotaExceeded, msg, err) }
func Forbidden(msg string, err error) error     { return New(KindForbidden, msg, err) }

// As достает типизированную ошибку из цепочки
func As(err error) (*Error, bool) {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return nil, false
	}
	return e, true
}

// KindOf достает категорию из цепочки ошибок
func KindOf(err error) (Kind, bool) {
	e, ok := As(err)
	if !ok {
		return "", false
	}
	return e.Kind, true
}

// Is сообщает, относится ли ошибка к категории
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
