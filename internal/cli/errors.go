package cli

import (
	"errors"

	"github.com/sandeepkv93/datetally/internal/api"
)

const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitBackend    = 3
	ExitReauth     = 4
	ExitTransport  = 5
)

// opError marks a failure of the requested operation, as opposed to a
// usage or startup problem.
type opError struct {
	err error
}

func (e *opError) Error() string { return e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

// ExitCode maps an error returned by the root command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var op *opError
	if !errors.As(err, &op) {
		return ExitFailure
	}
	switch api.Classify(op.err) {
	case api.ClassValidation:
		return ExitValidation
	case api.ClassBackend:
		return ExitBackend
	case api.ClassReauth:
		return ExitReauth
	case api.ClassTransport:
		return ExitTransport
	default:
		return ExitFailure
	}
}

// ErrorMessage is the line printed for err before exiting.
func ErrorMessage(err error) string {
	var op *opError
	if !errors.As(err, &op) {
		return err.Error()
	}
	switch api.Classify(op.err) {
	case api.ClassValidation:
		return op.err.Error()
	case api.ClassTransport:
		return api.Message(op.err) + " (" + op.err.Error() + ")"
	default:
		return api.Message(op.err)
	}
}
