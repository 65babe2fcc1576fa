package moneypkg

import "github.com/go-playground/validator/v10"

// ValidAmount validates a string field as an amount accepted by ParseAmount.
var ValidAmount validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		_, err := ParseAmount(s)
		return err == nil
	}
	return false
}
