package core

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const requiredText = "this field is required"

// firstGraduationYear is the founding year of the oldest batch on record.
const firstGraduationYear = 1911

type validationRule struct {
	tag  string
	fn   validator.Func
	text string
}

var (
	usernameRegex = regexp.MustCompile(`^[\w\s]+$`)
	mobileRegex   = regexp.MustCompile(`^(\+?63|0)9\d{9}$`)
	mobileCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

	portalRules = []validationRule{
		{
			tag:  "alphanum_",
			fn:   func(fl validator.FieldLevel) bool { return usernameRegex.MatchString(fl.Field().String()) },
			text: "only alphanumeric characters and underscores are allowed",
		},
		{
			tag:  "mobile",
			fn:   func(fl validator.FieldLevel) bool { return IsMobileNumber(fl.Field().String()) },
			text: "enter a valid mobile number, e.g. +639171234567 or 09171234567",
		},
		{
			tag:  "gradyear",
			fn:   func(fl validator.FieldLevel) bool { return IsGraduationYear(int(fl.Field().Int())) },
			text: "enter a graduation year between 1911 and next year",
		},
	}
)

// IsMobileNumber accepts philippine mobile numbers in local or international form,
// ignoring spaces, dashes and parentheses.
func IsMobileNumber(s string) bool {
	return mobileRegex.MatchString(mobileCleaner.Replace(s))
}

func IsGraduationYear(year int) bool {
	return year >= firstGraduationYear && year <= time.Now().Year()+1
}

func NewTranslator() ut.Translator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	return translator
}

// NewValidator returns a validator with the portal rules and english messages registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)
	return validate, translator
}

// InitValidators registers the default english messages, JSON field names and the portal rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, rule := range portalRules {
		_ = validate.RegisterValidation(rule.tag, rule.fn)
		RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
	for _, tag := range []string{"required", "required_with"} {
		RegisterCustomTranslation(validate, translator, tag, requiredText, true)
	}
}

// RegisterCustomTranslation sets the message for tag. Pass override to replace a default one.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	replace := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, replace) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}
