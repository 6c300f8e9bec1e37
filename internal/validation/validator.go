// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the whole process; it caches struct
// metadata and reports fields by their JSON names, so a failing rule on
// CreateEventRequest.TicketTiers[1].Price is reported as "ticket_tiers[1].price".
//
//	if err := validation.Struct(&req); err != nil {
//	    return err // *validation.Error, mapped to 400 with per-field errors
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/forgo/marquee/api/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Error is a set of field failures for one request
type Error struct {
	Fields []model.FieldError
}

// Error implements the error interface
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// New builds an Error from already computed field failures.
// It returns nil when fields is empty so callers can return it directly.
func New(fields ...model.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Fields: fields}
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s against its struct tags. Extra failures computed by the
// caller are appended to the result.
func Struct(s interface{}, extra ...model.FieldError) error {
	var fields []model.FieldError

	if err := instance().Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return fmt.Errorf("validate %T: %w", s, err)
		}
		for _, fe := range validationErrs {
			fields = append(fields, model.FieldError{
				Field:   fieldPath(fe),
				Message: translate(fe),
			})
		}
	}

	fields = append(fields, extra...)
	return New(fields...)
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"url":      "must be a valid URL",
}

var messagesWithParam = map[string]string{
	"oneof": "must be one of: %s",
	"gte":   "must be greater than or equal to %s",
	"lte":   "must be less than or equal to %s",
	"gt":    "must be greater than %s",
	"lt":    "must be less than %s",
}

func translate(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}

	switch fe.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		case "max":
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
	case reflect.String:
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		case "max":
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
	default:
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			return fmt.Sprintf("must be at most %s", fe.Param())
		}
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
