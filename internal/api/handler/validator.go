package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// requestValidator runs go-playground/validator for c.Validate and names
// fields the way the client sent them: path param, then query, then JSON key.
type requestValidator struct {
	v *validator.Validate
}

// NewValidator returns the echo.Validator used by the chat routes.
func NewValidator() echo.Validator {
	v := validator.New()
	v.RegisterTagNameFunc(wireName)
	return &requestValidator{v: v}
}

func wireName(f reflect.StructField) string {
	for _, tag := range []string{"param", "query", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	return errors.New(strings.Join(lo.Map(ve, func(fe validator.FieldError, _ int) string {
		return describe(fe)
	}), "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
