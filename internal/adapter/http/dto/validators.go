package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"civic-document-service/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var customValidators = map[string]func(string) bool{
	"safe_id":   regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`).MatchString,
	"reference": isReference,
	"contact":   regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}$`).MatchString,
}

func isReference(s string) bool {
	_, _, _, err := domain.ParseReference(s)
	return err == nil
}

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	for tag, valid := range customValidators {
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		})
	}
}

// SanitizeStruct trims and HTML-escapes the exported string fields, *string
// fields and string map values of a struct pointer. A field tagged
// sanitize:"trim" is only trimmed; sanitize:"-" leaves it untouched.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		sanitize := escapeTrim
		switch rv.Type().Field(i).Tag.Get("sanitize") {
		case "-":
			continue
		case "trim":
			sanitize = strings.TrimSpace
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		case reflect.Map:
			if f.IsNil() || f.Type().Elem().Kind() != reflect.String {
				continue
			}
			iter := f.MapRange()
			for iter.Next() {
				f.SetMapIndex(iter.Key(), reflect.ValueOf(sanitize(iter.Value().String())).Convert(f.Type().Elem()))
			}
		}
	}
}

func escapeTrim(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
