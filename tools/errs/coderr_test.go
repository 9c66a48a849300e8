package errs

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeUnwrapsWrapped(t *testing.T) {
	err := Wrap(ErrNotFound.WithDetail("user not found"))
	ce := Code(err)
	assert.Equal(t, NotFoundErrorCode, ce.Code)
	assert.Equal(t, "user not found", ce.Detail)
}

func TestCodeFallsBackToInternal(t *testing.T) {
	ce := Code(errors.New("plain"))
	assert.Equal(t, ServerInternalError, ce.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, ErrAuthentication.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, ErrAuthorization.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, ErrNotFound.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, ErrValidation.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, ErrTransientStore.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, ErrInternal.HTTPStatus())
}

func TestWithDetailKeepsCode(t *testing.T) {
	e := ErrValidation.WithDetail("first").WithDetail("second")
	assert.Equal(t, ValidationErrorCode, e.Code)
	assert.Contains(t, e.Detail, "first")
	assert.Contains(t, e.Detail, "second")
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(ErrValidation.WithDetail("bad input"))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil))
	assert.NoError(t, WrapMsg(nil, "ctx"))
}
