package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kbukum/mindboggle123/errors"
)

// Validator collects field errors for checks that struct tags cannot
// express, such as bounds known only at run time.
type Validator struct {
	errors []FieldError
}

// FieldError is one failed check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string { return e.Field + " " + e.Message }

// New creates an empty Validator.
func New() *Validator {
	return &Validator{}
}

// AddError records a failed check on field.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the failed checks in the order they were made.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns nil when every check passed. Otherwise it returns one
// CONFIGURATION_ERROR naming each failed field, with the individual failures
// under the "fields" detail.
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}

	parts := make([]string, len(v.errors))
	for i, e := range v.errors {
		parts[i] = e.String()
	}
	err := errors.Configuration("", strings.Join(parts, "; ")).WithDetail("fields", v.errors)
	if len(v.errors) == 1 {
		err = err.WithDetail("field", v.errors[0].Field)
	}
	return err
}

// Required fails when value is empty or blank.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Range fails when value lies outside [lo, hi].
func (v *Validator) Range(field string, value, lo, hi int) *Validator {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("must be between %d and %d (got %d)", lo, hi, value))
	}
	return v
}

// Pattern fails when a non-empty value does not match pattern.
func (v *Validator) Pattern(field, value, pattern string) *Validator {
	if value == "" {
		return v
	}
	if ok, err := regexp.MatchString(pattern, value); err != nil || !ok {
		v.AddError(field, "does not match required format")
	}
	return v
}

// Custom fails with message when ok is false.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}
