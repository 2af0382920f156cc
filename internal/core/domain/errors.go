package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("ingest job not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrReferenceNotFound = errors.New("reference not found")
	ErrReferenceExpired  = errors.New("reference expired")
	ErrTerminalState     = errors.New("job already terminal")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
