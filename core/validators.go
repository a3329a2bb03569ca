package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// custom validation tags & texts
const (
	statusTag  = "status"
	statusText = "{0} must be one of: present, absent, late, excused"

	clockTag  = "clock"
	clockText = "{0} must be a time of day formatted as HH:MM"

	requiredTag  = "required"
	requiredText = "this field is required"
)

var clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// InitValidators registers the JSON field names, custom tags and english texts on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(statusTag, statusValidation)
	RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(clockTag, clockValidation)
	RegisterCustomTranslation(validate, translator, clockTag, clockText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// statusValidation only allows known attendance statuses (case-insensitive).
func statusValidation(fl validator.FieldLevel) bool {
	_, ok := AttendanceStatuses[CleanString(fl.Field().String(), true)]
	return ok
}

func clockValidation(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}
