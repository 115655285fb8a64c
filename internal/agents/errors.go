package agents

import (
	"errors"
	"fmt"
)

var (
	// ErrUserDeclined is returned when the operator refuses to run generated code
	ErrUserDeclined = errors.New("user declined to run generated code")
	// ErrTooManyBugs is returned when the build keeps failing past the fix ceiling
	ErrTooManyBugs = errors.New("too many bugs in generated code")
	// ErrMalformedGeneration is returned when a structured response cannot be decoded
	ErrMalformedGeneration = errors.New("malformed generation")
)

func malformed(artifact string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedGeneration, artifact, err)
}
