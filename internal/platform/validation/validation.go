// Package validation checks request forms before they are sent.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldError is one failed rule.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

// Error lists every failed rule of a form.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, describe(f))
	}
	return "Dữ liệu không hợp lệ: " + strings.Join(parts, "; ")
}

func describe(f FieldError) string {
	switch f.Rule {
	case "required":
		return fmt.Sprintf("%s là bắt buộc", f.Field)
	case "oneof":
		return fmt.Sprintf("%s phải là một trong [%s]", f.Field, f.Param)
	case "gt":
		return fmt.Sprintf("%s phải lớn hơn %s", f.Field, f.Param)
	case "gte", "min":
		return fmt.Sprintf("%s phải lớn hơn hoặc bằng %s", f.Field, f.Param)
	case "lte", "max":
		return fmt.Sprintf("%s phải nhỏ hơn hoặc bằng %s", f.Field, f.Param)
	default:
		return fmt.Sprintf("%s không hợp lệ (%s)", f.Field, f.Rule)
	}
}

// Struct validates s against its validate tags.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Has reports whether err contains a failure of rule on field.
func Has(err error, field, rule string) bool {
	var verr *Error
	if !errors.As(err, &verr) {
		return false
	}
	for _, f := range verr.Fields {
		if f.Field == field && f.Rule == rule {
			return true
		}
	}
	return false
}
