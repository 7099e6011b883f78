package api

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// ValidationError lists rejected request fields keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, name+": "+e.Fields[name])
	}
	return "invalid request: " + strings.Join(messages, "; ")
}

type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	validatorOnce   sync.Once
	sharedValidator *requestValidator
)

func defaultValidator() *requestValidator {
	validatorOnce.Do(func() {
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
			panic("register validator translations: " + err.Error())
		}
		sharedValidator = &requestValidator{validate: validate, translator: trans}
	})
	return sharedValidator
}

// Validate checks a request struct against its validate tags.
func Validate(req any) error {
	v := defaultValidator()
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldPath(fe)] = fe.Translate(v.translator)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the root struct name from the namespace, leaving e.g.
// "attachments[0].kind".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}
