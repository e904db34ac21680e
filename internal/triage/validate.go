package triage

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is the sentinel wrapped by every ValidationError.
var ErrInvalidRecord = errors.New("invalid issue record")

// ValidationError describes why a Record was rejected.
type ValidationError struct {
	ID      string
	Field   string
	Message string
}

func (v *ValidationError) Error() string {
	if v.ID == "" {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidRecord, v.Field, v.Message)
	}
	return fmt.Sprintf("%s %q: %s: %s", ErrInvalidRecord, v.ID, v.Field, v.Message)
}

func (v *ValidationError) Unwrap() error { return ErrInvalidRecord }

// Validate rejects records with missing identifiers or timestamps, negative
// comment counts, or an update time before creation.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return &ValidationError{Field: "id", Message: "required"}
	case r.Comments < 0:
		return &ValidationError{ID: r.ID, Field: "comments", Message: fmt.Sprintf("must be >= 0, got %d", r.Comments)}
	case r.CreatedAt.IsZero():
		return &ValidationError{ID: r.ID, Field: "created_at", Message: "required"}
	case r.UpdatedAt.IsZero():
		return &ValidationError{ID: r.ID, Field: "updated_at", Message: "required"}
	case r.UpdatedAt.Before(r.CreatedAt):
		return &ValidationError{ID: r.ID, Field: "updated_at", Message: "before created_at"}
	}
	return nil
}
