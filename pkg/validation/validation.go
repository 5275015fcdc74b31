package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	v *validator.Validate

	// Policy number: letters, digits and dashes, 4–40 chars, e.g. E390073 or HLT-2024-0001.
	rePolicyNum = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{3,39}$`)
	// Account number: IBAN-ish or plain digits, 6–34 chars.
	reAccountNo = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{4,32}[A-Za-z0-9]$`)
)

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("policynum", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" { // let required handle empty
			return true
		}
		return rePolicyNum.MatchString(val)
	})

	_ = v.RegisterValidation("accountno", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		return reAccountNo.MatchString(val)
	})
}

// fieldKey turns "ClaimDetails.payment_details.account_number" into
// "payment_details.account_number"; the root struct name is dropped.
func fieldKey(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

// Validate returns map[field][]messages (Laravel-like)
func Validate(s any) (map[string][]string, error) {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		out := make(map[string][]string)
		for _, e := range ve {
			field := fieldKey(e)

			switch e.Tag() {
			case "required", "required_if", "required_with":
				out[field] = append(out[field], "This field is required")

			case "email":
				out[field] = append(out[field], "Invalid email format")

			case "min":
				switch e.Kind() {
				case reflect.String:
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s characters", e.Param()))
				case reflect.Slice:
					out[field] = append(out[field], fmt.Sprintf("Must contain at least %s items", e.Param()))
				default:
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s", e.Param()))
				}

			case "max":
				switch e.Kind() {
				case reflect.String:
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s characters", e.Param()))
				case reflect.Slice:
					out[field] = append(out[field], fmt.Sprintf("Must contain at most %s items", e.Param()))
				default:
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s", e.Param()))
				}

			case "gt":
				out[field] = append(out[field], fmt.Sprintf("Must be greater than %s", e.Param()))

			case "oneof":
				out[field] = append(out[field], "Value is not allowed")

			case "uuid", "uuid4":
				out[field] = append(out[field], "Invalid UUID format")

			case "datetime":
				out[field] = append(out[field], "Invalid date (use YYYY-MM-DD)")

			case "gte":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be greater than or equal to %s", e.Param()))
				}

			case "lte":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be less than or equal to %s", e.Param()))
				}

			case "policynum":
				out[field] = append(out[field], "Invalid policy number format")

			case "accountno":
				out[field] = append(out[field], "Invalid account number")

			default:
				// Fallback to original error text if we missed a tag
				out[field] = append(out[field], e.Error())
			}
		}
		return out, nil
	}
	return nil, nil
}
