// Package validation checks request inputs with go-playground/validator struct tags and
// reports failures in the httpx error taxonomy.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tripledger/tripledger/internal/platform/httpx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterStructRules adds a cross-field rule for the types of the given values.
func RegisterStructRules(fn validator.StructLevelFunc, types ...any) {
	validate.RegisterStructValidation(fn, types...)
}

// FieldError names an input field that failed validation.
type FieldError struct {
	Field string
	Rule  string
}

// InputError lists every invalid field of an input. It matches httpx.ErrValidation.
type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

// Unwrap lets errors.Is match httpx.ErrValidation.
func (e *InputError) Unwrap() error {
	return httpx.ErrValidation
}

// Has reports whether field failed.
func (e *InputError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Struct validates v. Field names are reported in lowerCamel form.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation: %w", err)
	}
	out := &InputError{}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: lowerFirst(fe.Field()), Rule: fe.Tag()})
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
