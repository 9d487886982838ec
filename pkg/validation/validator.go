package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Password bounds. bcrypt rejects inputs longer than 72 bytes, so the upper
// bound is in bytes, not characters.
const (
	MinPasswordRunes = 8
	MaxPasswordBytes = 72
)

var (
	phonePattern = regexp.MustCompile(`^[\d\s\-+()]+$`)
	zipPattern   = regexp.MustCompile(`^[0-9]{5,6}$`)
)

// FieldError is a single field-level violation suitable for API error lists.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Init configures the global validator used by Gin's binding.
// - Uses JSON (or form/uri) tag names in errors.
// - Registers alias tags and the profile-specific validators.
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register installs tag-name resolution, aliases and custom validators on v.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form", "uri"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	// Aliases for common semantics
	v.RegisterAlias("personname", "min=2,max=100")
	v.RegisterAlias("userrole", "oneof=Customer Admin")

	_ = v.RegisterValidation("pwd", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return utf8.RuneCountInString(s) >= MinPasswordRunes && len(s) <= MaxPasswordBytes
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return phonePattern.MatchString(s) && len(s) >= 10 && len(s) <= 15
	})
	_ = v.RegisterValidation("zipcode", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return !t.After(time.Now())
	})
}

// ToDetails converts validation/binding errors into an ordered list of
// field violations. All violations of the failing shape are reported.
func ToDetails(err error) []FieldError {
	if err == nil {
		return nil
	}

	// Invalid JSON payloads
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		return []FieldError{{Field: ute.Field, Message: "must be of type " + ute.Type.String()}}
	}
	if errors.As(err, &se) || errors.As(err, &ute) {
		return []FieldError{{Field: "payload", Message: "invalid json"}}
	}

	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return []FieldError{{Field: "query", Message: fmt.Sprintf("invalid number %q", ne.Num)}}
	}

	// Validation errors from validator.v10
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fieldPath(fe), Message: Message(fe)})
		}
		return out
	}

	// Fallback
	return []FieldError{{Field: "payload", Message: "invalid payload"}}
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read as "addresses[0].zipCode".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Message renders a human-friendly message for a single field error.
func Message(fe validator.FieldError) string {
	tag := fe.Tag()
	param := fe.Param()

	switch tag {
	case "required":
		return "is required"
	case "required_if":
		return "is required if " + param
	case "required_without":
		return "is required when " + param + " is not present"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "boolean":
		return "must be a boolean value"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "startswith":
		return "must start with '" + param + "'"
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", param)
	case "min":
		if isNumberKind(fe.Kind()) {
			return "must be at least " + param
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + param + " items"
		}
		return "must be at least " + param + " characters long"
	case "max":
		if isNumberKind(fe.Kind()) {
			return "must be at most " + param
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + param + " items"
		}
		return "must be at most " + param + " characters long"
	case "gte":
		return "must be greater than or equal to " + param
	case "lte":
		return "must be less than or equal to " + param
	case "gt":
		return "must be greater than " + param

	// custom config tags
	case "posint":
		return "must be a positive integer"
	case "nonnegint":
		return "must be a non-negative integer"
	case "duration":
		return "must be a positive duration (e.g. 10s, 15m)"

	// custom aliases and request validators
	case "pwd":
		return "must be at least 8 characters and at most 72 bytes long"
	case "personname":
		return "must be between 2 and 100 characters long"
	case "userrole":
		return "must be one of: Customer, Admin"
	case "phone":
		return "must be a valid phone number"
	case "zipcode":
		return "must be a valid zip code"
	case "notfuture":
		return "cannot be in the future"

	default:
		if param != "" {
			return fmt.Sprintf("validation failed for '%s' with parameter '%s'", tag, param)
		}
		return fmt.Sprintf("validation failed for '%s'", tag)
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
