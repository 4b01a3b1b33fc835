package fingerprint

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks a baseline or a constraint that is structurally unusable.
var ErrInvalid = errors.New("invalid fingerprint")

var validate = validator.New()

// Validate checks that a stored baseline can drive a launch.
func Validate(b *Baseline) error {
	if b == nil {
		return fmt.Errorf("%w: missing baseline", ErrInvalid)
	}
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
