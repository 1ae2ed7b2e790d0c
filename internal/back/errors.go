package back

import (
	"errors"
	"fmt"

	"ladder/internal/util"
)

// Error kinds, match them with errors.Is.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrPersistence   = errors.New("persistence error")
)

// kinds is ordered by precedence for KindOf.
var kinds = []error{ // nolint:gochecknoglobals
	ErrInvalidInput,
	ErrNotAuthorized,
	ErrInvalidState,
	ErrNotFound,
	ErrAlreadyExists,
	ErrPersistence,
}

// Error is a failure of the workflow. Reason is shown to players, Err is the
// underlying cause, if any.
type Error struct {
	Kind   error
	Reason util.ErrPublic
	Err    error

	format string
	args   []interface{}
}

// Translate returns the reason through a printf-like translator, the
// untranslated format string is given to t.
func (e *Error) Translate(t func(format string, args ...interface{}) string) string {
	if e.format == "" {
		return t(string(e.Reason))
	}

	return t(e.format, e.args...)
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + string(e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Reason != "" {
		errs = append(errs, e.Reason)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// KindOf returns the kind of err, unknown errors are persistence errors.
func KindOf(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}

	return ErrPersistence
}

func newError(kind error, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:   kind,
		Reason: util.ErrPublic(fmt.Sprintf(format, args...)),
		Err:    cause,
		format: format,
		args:   args,
	}
}

// asPersistence keeps workflow errors as-is and flags everything else as a
// storage failure.
func asPersistence(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return &Error{
		Kind:   ErrPersistence,
		Reason: "we couldn't record your update, try again?",
		Err:    err,
	}
}
