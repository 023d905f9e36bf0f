package github

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every ParseError.
var ErrParse = errors.New("malformed record")

// ErrUnknownOperation is returned by runners for operations they do not serve.
var ErrUnknownOperation = errors.New("unknown remote operation")

// ParseError reports a record that could not be decoded.
type ParseError struct {
	Repository string
	Branch     string
	Record     string
	Err        error
}

func (e *ParseError) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("failed to parse record in %s:%s: %v", e.Repository, e.Branch, e.Err)
	}
	return fmt.Sprintf("failed to parse record in %s: %v", e.Repository, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
