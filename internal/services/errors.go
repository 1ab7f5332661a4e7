// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

var (
	ErrUsageLimitExceeded = errors.New("usage limit exceeded")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrInvalidInput       = errors.New("invalid input")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}
