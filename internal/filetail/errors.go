package filetail

import (
	"errors"
	"fmt"
)

// ReadError records a failed file operation of a tail attempt.
// It unwraps to the underlying os/fs error.
type ReadError struct {
	Op   string // "stat", "open", "seek" or "read"
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

var (
	errIsDirectory = errors.New("is a directory")
	errAbandoned   = errors.New("read abandoned after deadline")
)

// withPath fills in the path of a ReadError produced below the Tailer
func withPath(err error, path string) error {
	var re *ReadError
	if errors.As(err, &re) && re.Path == "" {
		re.Path = path
	}
	return err
}
