package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors lists every violation found in a payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

var (
	usernamePattern = regexp.MustCompile(`^[가-힣a-zA-Z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^01[0-9]-?[0-9]{3,4}-?[0-9]{4}$`)
)

const passwordSpecials = "@$!%*?&"

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "query"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return StrongPassword(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// StrongPassword requires a lower and upper case letter, a digit and one of
// @$!%*?&, and the first character must come from that alphabet.
func StrongPassword(pw string) bool {
	if pw == "" {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	first := rune(pw[0])
	firstOK := (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') ||
		(first >= '0' && first <= '9') || strings.ContainsRune(passwordSpecials, first)
	return lower && upper && digit && special && firstOK
}

// Struct validates s and returns Errors listing every violation, or nil.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// Var validates a single value against a tag string such as "uuid4".
func Var(value any, tag string) bool {
	return instance().Var(value, tag) == nil
}

// DecodeJSON reads the request body into dst, drops empty optional strings,
// applies defaults and validates. Unknown fields are ignored. A value of the
// wrong JSON type is reported alongside the other field violations.
func DecodeJSON(r *http.Request, dst any) error {
	var typeErrs Errors
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return Errors{{Field: "body", Message: "malformed JSON"}}
		}
		// The decoder skips the mismatched value and fills the rest of dst.
		typeErrs = Errors{{Field: typeErr.Field, Message: "must be a " + typeName(typeErr.Type)}}
	}
	blankToNil(dst)
	if d, ok := dst.(interface{ ApplyDefaults() }); ok {
		d.ApplyDefaults()
	}

	err := Struct(dst)
	if len(typeErrs) == 0 {
		return err
	}
	var verrs Errors
	if err != nil && !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Field != typeErrs[0].Field {
			typeErrs = append(typeErrs, fe)
		}
	}
	return typeErrs
}

// blankToNil clears *string fields that point at "", so an empty optional
// value is treated the same as an absent one.
func blankToNil(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() == reflect.Ptr && !f.IsNil() && f.Elem().Kind() == reflect.String &&
			strings.TrimSpace(f.Elem().String()) == "" && f.CanSet() {
			f.Set(reflect.Zero(f.Type()))
		}
	}
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "whole number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	}
	return t.Kind().String()
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid", "uuid4":
		return "must be a valid id"
	case "username":
		return "may only contain Hangul, letters, digits and underscores"
	case "password":
		return "must contain upper and lower case letters, a digit and a special character (@$!%*?&)"
	case "phone":
		return "is not a valid mobile phone number"
	case "eqfield":
		return "passwords do not match"
	case "gtefield":
		return "must not be less than " + fe.Param()
	}
	return "is invalid"
}
