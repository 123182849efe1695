package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripledger/tripledger/internal/platform/httpx"
)

type signup struct {
	DisplayName string `validate:"required"`
	Email       string `validate:"required,email"`
	Password    string `validate:"min=8"`
	Confirm     string
}

func init() {
	RegisterStructRules(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(signup)
		if in.Confirm != in.Password {
			sl.ReportError(in.Confirm, "Confirm", "Confirm", "eqfield", "Password")
		}
	}, signup{})
}

func TestStructValid(t *testing.T) {
	require.NoError(t, Struct(signup{DisplayName: "Ana", Email: "ana@example.com", Password: "long-enough", Confirm: "long-enough"}))
}

func TestStructReportsEveryField(t *testing.T) {
	err := Struct(signup{Email: "nope", Password: "short", Confirm: "other"})
	require.Error(t, err)

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.True(t, inputErr.Has("displayName"))
	assert.True(t, inputErr.Has("email"))
	assert.True(t, inputErr.Has("password"))
	assert.True(t, inputErr.Has("confirm"))
	assert.False(t, inputErr.Has("Email"))
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, err.Error(), "email (email)")
}

func TestStructRejectsNonStruct(t *testing.T) {
	err := Struct("just a string")
	require.Error(t, err)
	assert.NotErrorIs(t, err, httpx.ErrValidation)
}
