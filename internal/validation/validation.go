// Package validation registers the request tracker's vocabulary tags with the validator
// gin binds request bodies through, and turns binding failures into client messages.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/component-request-system/crs/internal/db/models"
)

// Tag names usable in `binding:"..."` struct tags
const (
	TagRequestStatus   = "request_status"
	TagRequestSeverity = "request_severity"
	TagRequestCategory = "request_category"
	TagRequestSource   = "request_source"
	TagUserRole        = "user_role"
)

var tags = map[string]func(string) bool{
	TagRequestStatus:   func(s string) bool { return models.RequestStatus(s).Valid() },
	TagRequestSeverity: func(s string) bool { return models.Severity(s).Valid() },
	TagRequestCategory: func(s string) bool { return models.Category(s).Valid() },
	TagRequestSource:   func(s string) bool { return models.Source(s).Valid() },
	TagUserRole:        func(s string) bool { return models.Role(s).Valid() },
}

// Register adds the vocabulary tags to v and reports fields by their JSON names
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	for tag, valid := range tags {
		valid := valid
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// RegisterWithGin registers the tags on gin's default binding validator
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Message renders a body binding error as a single sentence for an {"error": ...} body.
// Only the first failing field is reported.
func Message(err error) string {
	return MessageOr(err, "Invalid request body")
}

// MessageOr is Message with a caller-chosen sentence for errors that name no field
func MessageOr(err error, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldMessage(verrs[0])
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s has the wrong type", Label(typeErr.Field))
	}
	return fallback
}

func fieldMessage(fe validator.FieldError) string {
	label := Label(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be a valid email"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case TagRequestStatus, TagRequestSeverity, TagRequestCategory, TagRequestSource, TagUserRole:
		return fmt.Sprintf("Invalid %s %q", strings.ToLower(label), fmt.Sprint(fe.Value()))
	}
	return label + " is invalid"
}

// Label turns a JSON field name into words: "requestName" -> "Request name",
// "denial_reason" -> "Denial reason".
func Label(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(' ')
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
