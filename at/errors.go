package at

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("malformed response line")

// ParseError reports which field of an information line could not be read.
type ParseError struct {
	Line  string
	Field int
	Want  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: field %d of %q: want %s", ErrParse, e.Field, e.Line, e.Want)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}
