package model

import (
	"errors"
	"strings"
)

var ErrValidation = errors.New("validation failed")

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + " " + e.Message
}

// ValidationErrors lists every failed check of an entity, in the order they were detected.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.String())
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, ", ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

func (v *ValidationErrors) Add(field string, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

func (v ValidationErrors) On(field string) []string {
	msgs := []string{}
	for _, e := range v {
		if e.Field == field {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

func (v ValidationErrors) Empty() bool {
	return len(v) == 0
}

// Err returns nil when there are no errors so callers can use the usual err != nil check.
func (v ValidationErrors) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}
