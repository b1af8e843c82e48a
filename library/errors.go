package library

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error taxonomy surfaced to the shells. Anything else returned by a Catalog
// operation is a storage failure.
var (
	ErrValidation = errors.New("validation failed")
	ErrConstraint = errors.New("constraint violated")
	ErrNotFound   = errors.New("not found")

	ErrUsernameTaken = fmt.Errorf("%w: username already taken", ErrConstraint)
)

// validationError turns validator output into an ErrValidation naming the
// empty fields.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(fields, ", "))
}

// isUniqueViolation matches both drivers' error text, e.g.
// "UNIQUE constraint failed: users.username".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
