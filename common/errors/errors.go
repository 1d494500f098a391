// Package errors attaches a process exit code to an error.
package errors

type ExitCodeError struct {
	code ExitCode
	error
}

func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

func (e *ExitCodeError) Unwrap() error {
	return e.error
}

// ExitCodeOf is the exit code a process failing with err should use: the
// code of the first ExitCodeError in err's chain, 0 for nil, or
// GenericFailureExitCode.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return 0
	}
	for e := err; e != nil; {
		if ec, ok := e.(*ExitCodeError); ok {
			return ec.GetExitCode()
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return GenericFailureExitCode
}
