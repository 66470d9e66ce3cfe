package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// accessCodeRe matches the public exam token format: a fixed EXAM prefix
// followed by four digits.
var accessCodeRe = regexp.MustCompile(`^EXAM[0-9]{4}$`)

// Validator wraps go-playground struct validation plus the engine's custom
// rules. One instance is shared by all services.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerRules()

	return v
}

// Validate runs struct tag validation and returns nil or ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// registerRules registers the custom tag validators.
func (v *Validator) registerRules() {
	// Access code format (EXAM followed by four digits)
	v.validate.RegisterValidation("access_code", func(fl validator.FieldLevel) bool {
		return accessCodeRe.MatchString(fl.Field().String())
	})

	// Exam duration validation (5-300 minutes)
	v.validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 5 && duration <= 300
	})

	// Exam name validation (1-200 characters after trimming)
	v.validate.RegisterValidation("exam_name", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return len(name) >= 1 && len(name) <= 200
	})

	// Description validation (max 1000 characters)
	v.validate.RegisterValidation("exam_description", func(fl validator.FieldLevel) bool {
		desc := fl.Field().String()
		return len(desc) <= 1000
	})

	// difficulty level validation
	v.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "easy", "medium", "hard":
			return true
		}
		return false
	})

	// Window bound validation: accepts time.Time or *time.Time, nil is fine
	v.validate.RegisterValidation("exam_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true
		}

		var bound time.Time
		if field.Kind() == reflect.Ptr {
			bound = field.Elem().Interface().(time.Time)
		} else {
			bound = field.Interface().(time.Time)
		}

		return !bound.IsZero()
	})
}

// ===== VALIDATION ERRORS =====

type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ToValidationErrors converts go-playground errors into the engine's shape.
func ToValidationErrors(err error) ValidationErrors {
	var errors ValidationErrors

	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			errors = append(errors, ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: messageForTag(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
		return errors
	}

	return ValidationErrors{{
		Field:   "request",
		Message: err.Error(),
		Rule:    "invalid",
	}}
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "access_code":
		return "must match the EXAM#### format"
	case "exam_duration":
		return "must be between 5 and 300 minutes"
	case "exam_name":
		return "must be between 1 and 200 characters"
	case "exam_description":
		return "must be at most 1000 characters"
	case "difficulty_level":
		return "must be one of easy, medium, hard"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
