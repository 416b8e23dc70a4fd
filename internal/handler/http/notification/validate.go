package notification

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Validator checks decoded request bodies and reports failures keyed by JSON
// field name with English messages.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator panics if the translations cannot be registered.
func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic("failed to register validator translations: " + err.Error())
	}

	mustRegister(validate, trans, "event_type",
		func(fl validator.FieldLevel) bool { return eventTypePattern.MatchString(fl.Field().String()) },
		"{0} must be lower_snake_case and at most 64 characters")

	return &Validator{validate: validate, translator: trans}
}

func mustRegister(v *validator.Validate, trans ut.Translator, tag string, fn validator.Func, msg string) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("failed to register validation " + tag + ": " + err.Error())
	}
	err := v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error { return ut.Add(tag, msg, true) },
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		})
	if err != nil {
		panic("failed to register translation " + tag + ": " + err.Error())
	}
}

// Struct returns nil when s is valid, otherwise one message per field.
// Nested fields are keyed by their dotted path below the top-level struct,
// for example "template.name".
func (v *Validator) Struct(s any) map[string]string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = fe.Translate(v.translator)
	}
	return fields
}

// fieldPath drops the top-level type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
