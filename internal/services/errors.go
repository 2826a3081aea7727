package services

import (
	"errors"
	"fmt"

	"github.com/edusphere/exam-portal-service/internal/validator"
)

// Sentinel errors for the scoring and appeal core. Every error is scoped
// to the single operation that raised it and reported to the caller
// verbatim; nothing here is retried or swallowed.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAppealNotFound     = errors.New("appeal not found")

	// ErrSubmissionExists guards the one-submission-per-(exam, student) rule.
	ErrSubmissionExists = errors.New("submission already exists for this exam")

	// ErrAppealNotPending is raised when accept or reject targets an appeal
	// that already left the pending state. Terminal states never revert.
	ErrAppealNotPending = errors.New("appeal is not pending")

	// ErrAppealConflict means the atomic accept could not commit; no record
	// was changed and the teacher may retry the whole operation.
	ErrAppealConflict = errors.New("appeal resolution conflicted, no changes applied")
)

// ValidationError re-exports the validator error shapes so callers only
// deal with the services package.
type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

// NewValidationError builds a single-field validation failure.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// BusinessRuleError marks an operation that is well-formed but not allowed
// in the current state of the records.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// IsNotFound reports whether err is any of the missing-record sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrAppealNotFound)
}
