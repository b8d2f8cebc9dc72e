package queue

import "errors"

// ErrPermanent marks a job error that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// Permanent wraps err so the runner fails the job without further attempts.
// The original error stays reachable through errors.Is/As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
