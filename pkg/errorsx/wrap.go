package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError tags a failure with the stage that produced it. The session
// reports UserMessage(Reason) to the client and logs Err.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	switch {
	case e.Err == nil:
		return string(e.Reason)
	default:
		return e.Err.Error()
	}
}

func (e ReasonedError) Unwrap() error { return e.Err }

// Is matches another ReasonedError by reason, so errors.Is(err,
// ReasonedError{Reason: ReasonGenerate}) works without the cause.
func (e ReasonedError) Is(target error) bool {
	t, ok := target.(ReasonedError)
	return ok && t.Err == nil && t.Reason == e.Reason
}

// Wrap tags err with reason. The innermost reason wins: an error that already
// carries one is returned unchanged.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if _, tagged := find(err); tagged {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Wrapf formats a new error around err and tags it with reason.
func Wrapf(err error, reason ReasonCode, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(fmt.Errorf(format+": %w", append(args, err)...), reason)
}

// New returns a tagged error with a fixed message.
func New(reason ReasonCode, msg string) error {
	return ReasonedError{Err: errors.New(msg), Reason: reason}
}

// Reason reports the reason attached anywhere in err's chain.
func Reason(err error) ReasonCode {
	if re, ok := find(err); ok {
		return re.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return err != nil && Reason(err) == reason
}

func find(err error) (ReasonedError, bool) {
	var re ReasonedError
	if err == nil || !errors.As(err, &re) {
		return ReasonedError{}, false
	}
	return re, true
}
