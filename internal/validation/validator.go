// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

// Package validation provides struct validation using go-playground/validator v10.
// A single validator instance is shared process-wide; it caches struct metadata
// and carries the syncd-specific rules:
//
//   - urlpath: a non-empty path beginning with "/" and free of query or fragment
//   - httpurl: an absolute http or https URL with a host
//
// Example usage:
//
//	type RealtimeConfig struct {
//	    Path string `validate:"required,urlpath"`
//	}
//
//	if verr := validation.ValidateStruct(&cfg); verr != nil {
//	    return fmt.Errorf("invalid realtime config: %w", verr)
//	}
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError describes a single failing field.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter ("100" for "max=100").
func (e *ValidationError) Param() string { return e.param }

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} { return e.value }

func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects every failing field of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		messages = append(messages, ve.errors[i].Error())
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		mustRegister(validate, "urlpath", validateURLPath)
		mustRegister(validate, "httpurl", validateHTTPURL)
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

func validateURLPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return strings.HasPrefix(p, "/") && !strings.ContainsAny(p, "?# ")
}

func validateHTTPURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateStruct validates s. It returns nil when every rule passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Namespace(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"urlpath":  "%s must be an absolute path starting with /",
	"httpurl":  "%s must be an http or https URL with a host",
	"hostname": "%s must be a valid hostname",
	"ip":       "%s must be a valid IP address",
}

var errorMessageWithParam = map[string]string{
	"oneof":    "%s must be one of: %s",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"gt":       "%s must be greater than %s",
	"lt":       "%s must be less than %s",
	"gtfield":  "%s must be greater than %s",
	"gtefield": "%s must be greater than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Namespace()
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return translateMinMax(fe, field, fe.Tag(), fe.Param())
}

func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind().String() == "string"

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
