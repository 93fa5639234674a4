package views

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// FormErrors maps a form field to the message shown next to it.
type FormErrors map[string]string

func (f FormErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, f[k])
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message for one field, or "".
func (f FormErrors) Field(name string) string { return f[name] }

// messages is keyed by "field.tag", falling back to "field".
type messages map[string]string

// check validates form and converts failures into FormErrors. Only the
// first failure per field is kept.
func check(form any, msgs messages) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := FormErrors{}
	for _, fe := range ve {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = fieldMessage(fe, msgs)
	}
	return out
}

func fieldMessage(fe validator.FieldError, msgs messages) string {
	if m, ok := msgs[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := msgs[fe.Field()]; ok {
		return m
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", fe.Field(), fe.Tag())
	}
}

// asFormErrors unwraps validation failures for field display.
func asFormErrors(err error) FormErrors {
	var fe FormErrors
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}
