package errs

import (
	stderr "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// 错误码分段：11xx 业务可预期错误，15xx 服务端错误
const (
	AuthenticationErrorCode = 1101
	AuthorizationErrorCode  = 1102
	NotFoundErrorCode       = 1103
	ValidationErrorCode     = 1104
	TransientStoreErrorCode = 1105

	ServerInternalError = 1500
)

var (
	ErrAuthentication = NewCodeError(AuthenticationErrorCode, "AuthenticationError")
	ErrAuthorization  = NewCodeError(AuthorizationErrorCode, "AuthorizationError")
	ErrNotFound       = NewCodeError(NotFoundErrorCode, "NotFoundError")
	ErrValidation     = NewCodeError(ValidationErrorCode, "ValidationError")
	ErrTransientStore = NewCodeError(TransientStoreErrorCode, "TransientStoreError")
	ErrInternal       = NewCodeError(ServerInternalError, "ServerInternalError")
)

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) WithDetail(detail string) CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

func (e CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e CodeError) Is(err error) bool {
	var ce CodeError
	if !stderr.As(err, &ce) {
		return false
	}
	return e.Code == ce.Code
}

// HTTPStatus 把错误码映射为 HTTP 状态码
func (e CodeError) HTTPStatus() int {
	switch e.Code {
	case AuthenticationErrorCode:
		return http.StatusUnauthorized
	case AuthorizationErrorCode:
		return http.StatusForbidden
	case NotFoundErrorCode:
		return http.StatusNotFound
	case ValidationErrorCode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code 从任意 error 中取出 CodeError；非 CodeError 一律按内部错误处理
func Code(err error) CodeError {
	var ce CodeError
	if stderr.As(err, &ce) {
		return ce
	}
	return ErrInternal
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

func WrapMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
