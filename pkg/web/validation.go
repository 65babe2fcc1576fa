package web

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GetErrorMsg returns a human readable message for the first failed validation.
func GetErrorMsg(ve validator.ValidationErrors) string {
	if len(ve) == 0 {
		return ""
	}

	fe := ve[0]
	field := toSnakeCase(fe.Field())

	switch fe.Tag() {
	case "required":
		return field + " field is required"
	case "min":
		return fmt.Sprintf("%s field must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s field must be at most %s", field, fe.Param())
	case "email":
		return field + " field must be a valid email"
	case "alphanum":
		return field + " field accepts only alphanumeric characters"
	case "oneof":
		return fmt.Sprintf("%s field must be one of [%s]", field, fe.Param())
	case "nefield":
		return fmt.Sprintf("%s field must differ from %s", field, toSnakeCase(fe.Param()))
	case "accounttype":
		return field + " field has unsupported account type"
	case "amount":
		return field + " field must be a positive amount with at most 2 decimal places"
	case "datetime":
		return fmt.Sprintf("%s field must match %s format", field, fe.Param())
	}

	return field + " field is invalid"
}

// toSnakeCase converts a Go field name such as FromAccountID into from_account_id.
func toSnakeCase(s string) string {
	var sb strings.Builder

	var prevLower bool

	for _, r := range s {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper {
			if prevLower {
				_ = sb.WriteByte('_')
			}

			r += 'a' - 'A'
		}

		_, _ = sb.WriteRune(r)
		prevLower = !isUpper
	}

	return sb.String()
}
