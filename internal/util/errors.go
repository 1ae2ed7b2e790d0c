package util

import (
	"errors"
)

// ErrPublic is an error whose message is safe to show to players as-is.
type ErrPublic string

func (e ErrPublic) Error() string {
	return string(e)
}

// Is matches any ErrPublic, use errors.As to retrieve the message.
func (e ErrPublic) Is(v error) bool {
	_, ok := v.(ErrPublic)
	return ok
}

// PublicReason returns the first ErrPublic found in the err chain.
func PublicReason(err error) (ErrPublic, bool) {
	var pub ErrPublic
	if errors.As(err, &pub) {
		return pub, true
	}

	return "", false
}
