package extract

import (
	"errors"
	"fmt"
)

// ErrRequiredField matches any FieldExtractionError via errors.Is
var ErrRequiredField = errors.New("required field not found")

// FieldExtractionError reports a required field that no locator could resolve
type FieldExtractionError struct {
	Field string
}

func (e *FieldExtractionError) Error() string {
	return fmt.Sprintf("required field %q not found", e.Field)
}

// Is makes errors.Is(err, ErrRequiredField) hold
func (e *FieldExtractionError) Is(target error) bool {
	return target == ErrRequiredField
}
