package httpx

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusConflict, ErrValidation},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
	}
	for _, tc := range cases {
		err := Classify(tc.status, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
	assert.NoError(t, Classify(http.StatusOK, nil))
	assert.NoError(t, Classify(http.StatusNoContent, nil))
}

func TestClassifyKeepsDetail(t *testing.T) {
	err := Classify(http.StatusBadRequest, []byte(`{"message":"email already registered"}`))
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, "email already registered", statusErr.Detail)
	assert.Contains(t, err.Error(), "email already registered")
}

func TestDetailFromBody(t *testing.T) {
	assert.Equal(t, "", DetailFromBody(nil))
	assert.Equal(t, "bad code", DetailFromBody([]byte(`{"title":"Bad Request","status":400,"detail":"bad code"}`)))
	assert.Equal(t, "Bad Request", DetailFromBody([]byte(`{"title":"Bad Request","status":400}`)))
	assert.Equal(t, "nope", DetailFromBody([]byte(`{"error":"nope"}`)))
	assert.Equal(t, "gateway timeout", DetailFromBody([]byte("gateway timeout\n")))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure(Classify(http.StatusUnauthorized, nil)))
	assert.True(t, IsAuthFailure(Classify(http.StatusForbidden, nil)))
	assert.False(t, IsAuthFailure(Classify(http.StatusInternalServerError, nil)))
	assert.False(t, IsAuthFailure(Transport(errors.New("dial tcp: refused"))))
	assert.ErrorIs(t, Transport(errors.New("dial tcp: refused")), ErrNetwork)
	assert.NoError(t, Transport(nil))
}
