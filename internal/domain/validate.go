package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator checks submitted forms and converts failures into a
// *ValidationError keyed by json field names.
type Validator struct {
	validate          *validator.Validate
	minPasswordLength int
}

func NewValidator(minPasswordLength int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive() && significantDigits(d) <= maxPriceDigits
	})
	_ = v.RegisterValidation("min_password", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) >= minPasswordLength
	})

	return &Validator{validate: v, minPasswordLength: minPasswordLength}
}

// Prices are stored as Decimal128, which holds 34 significant digits.
const maxPriceDigits = 34

// significantDigits counts the digits of d as written out in full, without
// leading zeros.
func significantDigits(d decimal.Decimal) int {
	digits := strings.Replace(d.Abs().String(), ".", "", 1)
	return len(strings.TrimLeft(digits, "0"))
}

// Struct validates s. The returned error is nil or a *ValidationError that
// echoes input back.
func (v *Validator) Struct(s any, input map[string]string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	ve := NewValidationError("validation failed", input)
	for _, fe := range verrs {
		ve.Add(fe.Field(), fe.Tag(), v.message(fe))
	}
	return ve
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "please enter a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "positive_decimal":
		return fmt.Sprintf("%s must be a positive number with at most %d digits", fe.Field(), maxPriceDigits)
	case "min_password":
		return fmt.Sprintf("password must be at least %d characters", v.minPasswordLength)
	case "eqfield":
		return "passwords have to match"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
