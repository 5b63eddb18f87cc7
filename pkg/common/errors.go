package common

import (
	"errors"
	"fmt"
)

var (
	// ErrIOFailure matches any failure to open, read, write, rename or remove
	// a file the engine depends on. It is fatal to the pipeline.
	ErrIOFailure = errors.New("io failure")
	// ErrMalformedRecord marks a token that cannot be converted in numeric
	// mode. Sources skip such tokens.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrUnknownAlgorithm is returned for selector IDs that are not registered.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// IOError records the operation and path that failed.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIOFailure }

// WrapIO wraps err as an IOError unless it is nil or already one.
func WrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}
