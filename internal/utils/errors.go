package utils

import "fmt"

// OpError tags an error with the operation that produced it, so a warn line
// reads "valkey.get: i/o timeout" without every caller hand-rolling the
// prefix. It unwraps, so errors.Is and errors.As see through the tag.
type OpError struct {
	Op  string // dotted operation name, e.g. "valkey.dial"
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// OpErr wraps err with an operation tag. A nil err stays nil so call sites
// can wrap unconditionally on the return path.
func OpErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
