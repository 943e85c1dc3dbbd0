package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"edupanel/internal/models"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

// custom validation tags
const (
	notBlankTag     = "notblank"
	exerciseTypeTag = "exercise_type"
	contentTypeTag  = "content_type"
)

func init() {
	validate = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report form field names rather than Go struct names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterValidation(exerciseTypeTag, func(fl validator.FieldLevel) bool {
		return models.ExerciseType(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(contentTypeTag, func(fl validator.FieldLevel) bool {
		return models.ValidContentType(fl.Field().String())
	})

	registerCustomTranslation(notBlankTag, "{0} cannot be blank")
	registerCustomTranslation(exerciseTypeTag, "{0} must be open, multiple_choice or true_false")
	registerCustomTranslation(contentTypeTag, "{0} must be lesson, exercise or exercise_list")
}

func registerCustomTranslation(tag, text string) {
	_ = validate.RegisterTranslation(tag, translator,
		func(trans ut.Translator) error { return trans.Add(tag, text, true) },
		func(trans ut.Translator, fe validator.FieldError) string {
			msg, err := trans.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Errors maps form field names to a human readable message
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, e[field])
	}
	return strings.Join(parts, "; ")
}

// Struct validates a form struct and returns Errors keyed by form field name
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, exists := out[fe.Field()]; !exists {
			out[fe.Field()] = fe.Translate(translator)
		}
	}
	return out
}

// AsErrors extracts field errors from err, if it carries any
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

func field(value interface{}, name, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		msg := fieldErrs[0].Translate(translator)
		return Errors{name: name + strings.TrimPrefix(msg, fieldErrs[0].Field())}
	}
	return err
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	return field(strings.TrimSpace(email), "email", "required,email")
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	return field(password, "password", "required,min=8")
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	return field(strings.TrimSpace(name), "name", "required,min=2")
}
