package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	notBlankTag  = "notblank"
	notBlankText = "this field may not be blank"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	enumTag  = "enum"
	enumText = "must be one of: {0}"
)

// Enum is implemented by string types with a closed set of values, checked with the "enum" tag.
type Enum interface {
	Valid() bool
	Choices() []string
}

// Variant is a tagged union. VariantTag names the variant held, "" when none is.
type Variant interface {
	VariantTag() string
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(jsonFieldName)

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(enumTag, enumValidation)
	_ = validate.RegisterTranslation(
		enumTag, translator,
		func(t ut.Translator) error { return t.Add(enumTag, enumText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			var choices []string
			if e, ok := fe.Value().(Enum); ok {
				choices = e.Choices()
			}
			s, _ := t.T(enumTag, strings.Join(choices, ", "))
			return s
		},
	)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RequireVariants makes every Variant field of the given struct types required: a payload
// whose variant is unset fails with a "required" error on that field.
func RequireVariants(validate *validator.Validate, types ...interface{}) {
	validate.RegisterStructValidation(variantsValidation, types...)
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

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// notBlankValidation rejects strings made of whitespace only.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// enumValidation only allows the values an Enum declares.
func enumValidation(fl validator.FieldLevel) bool {
	e, ok := fl.Field().Interface().(Enum)
	return ok && e.Valid()
}

func variantsValidation(sl validator.StructLevel) {
	current := sl.Current()
	typ := current.Type()
	for i := 0; i < typ.NumField(); i++ {
		fld := typ.Field(i)
		if !fld.IsExported() {
			continue
		}
		v, ok := current.Field(i).Interface().(Variant)
		if !ok || v.VariantTag() != "" {
			continue
		}
		name := jsonFieldName(fld)
		if name == "" {
			name = fld.Name
		}
		sl.ReportError(current.Field(i).Interface(), name, fld.Name, requiredTag, "")
	}
}

// jsonFieldName names struct fields after their JSON key in validation errors.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
