package services

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by handlers with errors.Is. They map the domain's
// error taxonomy: not-found, invalid state, window violations, time expiry,
// selection shortfall.
var (
	// Exam catalog
	ErrExamNotFound          = errors.New("exam not found")
	ErrExamNotActive         = errors.New("exam is not active")
	ErrExamNotYetOpen        = errors.New("exam window has not opened yet")
	ErrExamWindowClosed      = errors.New("exam window has closed")
	ErrDuplicateAccessCode   = errors.New("access code already in use")
	ErrInsufficientQuestions = errors.New("not enough questions to satisfy the difficulty quota")

	// Question bank
	ErrQuestionNotFound = errors.New("question not found")
	ErrQuestionInUse    = errors.New("question is used by an exam")

	// Candidates
	ErrCandidateNotFound = errors.New("candidate not found")

	// Sessions
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionAlreadySubmitted = errors.New("session already submitted")
	// ErrSessionTimeExpired is reported to the touching caller after the
	// session has been auto-finalized server-side. The failure and the
	// durable state change are two sides of the same call.
	ErrSessionTimeExpired = errors.New("session time expired")

	// Results
	ErrResultNotFound = errors.New("result not found")
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ValidationErrors aggregates per-field failures from one request.
type ValidationErrors struct {
	Errors []*ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed with %d errors", len(e.Errors))
}

func (e *ValidationErrors) Add(field, message string, value interface{}) {
	e.Errors = append(e.Errors, NewValidationError(field, message, value))
}

func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// PermissionError is returned when a caller acts on a resource it does not
// own or lacks the role for.
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError carries a machine-readable rule code plus context.
type BusinessRuleError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewBusinessRuleError(code, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// IsValidationError reports whether err carries validation details.
func IsValidationError(err error) bool {
	var single *ValidationError
	var multi *ValidationErrors
	return errors.As(err, &single) || errors.As(err, &multi)
}

// IsPermissionError reports whether err is a permission failure.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
