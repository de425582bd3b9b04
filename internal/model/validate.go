package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// MalformedDocumentError reports a stored document that lacks required
// fields or carries values outside the known enumerations.
type MalformedDocumentError struct {
	Collection string
	ID         string
	Problems   []string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed %s document %s: %s", e.Collection, e.ID, strings.Join(e.Problems, "; "))
}

// ValidatePoll checks that a decoded poll carries the fields every operation
// relies on.
func ValidatePoll(p *Poll) error {
	if p == nil {
		return &MalformedDocumentError{Collection: "polls", Problems: []string{"document is empty"}}
	}
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate poll %s: %w", p.ID.Hex(), err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return &MalformedDocumentError{Collection: "polls", ID: p.ID.Hex(), Problems: problems}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Poll.")
	switch fe.Tag() {
	case "required":
		return field + " is missing"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s %q is not one of [%s]", field, fmt.Sprint(fe.Value()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
