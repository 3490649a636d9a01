package component

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field. Field uses dotted paths with list
// indexes, e.g. "cards.2.title".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field-level problem found in a payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid component data"
	}
	first := e.Fields[0]
	if len(e.Fields) == 1 {
		return fmt.Sprintf("invalid component data: %s %s", first.Field, first.Message)
	}
	return fmt.Sprintf("invalid component data: %s %s (and %d more)", first.Field, first.Message, len(e.Fields)-1)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(v, "weburl", func(fl validator.FieldLevel) bool {
		return isWebURL(fl.Field().String())
	})
	v.RegisterStructValidation(validatePillList, PillList{})
	v.RegisterStructValidation(validateSocialLink, SocialLink{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// validatePillList rejects items equal to an earlier item ignoring case and
// surrounding space.
func validatePillList(sl validator.StructLevel) {
	list := sl.Current().Interface().(PillList)
	seen := make(map[string]int, len(list.Items))
	for i, item := range list.Items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" {
			continue
		}
		if first, ok := seen[key]; ok {
			sl.ReportError(item, fmt.Sprintf("items[%d]", i), "Items", "uniquefold", strconv.Itoa(first))
			continue
		}
		seen[key] = i
	}
}

// validateSocialLink checks the url against the platform. Email links may use
// mailto:, every other platform needs an http or https URL.
func validateSocialLink(sl validator.StructLevel) {
	link := sl.Current().Interface().(SocialLink)
	if strings.TrimSpace(link.URL) == "" {
		return
	}
	switch link.Platform {
	case PlatformEmail:
		if !isWebURL(link.URL) && !isMailto(link.URL) {
			sl.ReportError(link.URL, "url", "URL", "sociallink", "")
		}
	case PlatformGitHub, PlatformLinkedIn, PlatformX, PlatformWebsite, PlatformOther:
		if !isWebURL(link.URL) {
			sl.ReportError(link.URL, "url", "URL", "weburl", "")
		}
	}
}

func isWebURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func isMailto(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme != "mailto" {
		return false
	}
	_, err = mail.ParseAddress(parsed.Opaque)
	return err == nil
}

// check runs the tag rules on data and converts failures into a
// *ValidationError.
func check(data Data) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return fmt.Errorf("validate %s component: %w", data.Type(), err)
	}
	fields := make([]FieldError, len(failures))
	for i, failure := range failures {
		fields[i] = FieldError{Field: fieldPath(failure.Namespace()), Message: message(failure)}
	}
	return &ValidationError{Fields: fields}
}

// fieldPath turns "CardList.cards[0].title" into "cards.0.title".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	rest = strings.ReplaceAll(rest, "[", ".")
	return strings.ReplaceAll(rest, "]", "")
}

func message(fe validator.FieldError) string {
	list := fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "notblank", "required":
		return "is required"
	case "max":
		if list {
			return "must contain at most " + fe.Param() + " entries"
		}
		return "must be at most " + fe.Param() + " characters"
	case "min":
		if list {
			return "must contain at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param() + " characters"
	case "weburl":
		return "must be an http or https URL"
	case "sociallink":
		return "must be a mailto: address or an http or https URL"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uniquefold":
		return "duplicates items." + fe.Param()
	}
	return "is invalid"
}
