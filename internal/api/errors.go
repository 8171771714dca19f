package api

import (
	"errors"
	"fmt"
)

// InvalidPasswordMessage is the messageEN the server sends when the old
// password does not match.
const InvalidPasswordMessage = "Invalid password"

// Kind classifies remote failures.
type Kind int

const (
	// KindRemote is a transport or HTTP-level failure.
	KindRemote Kind = iota
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout
	// KindRejected is a semantic failure carried in a successful response.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindTimeout:
		return "timeout"
	case KindRejected:
		return "rejected"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kind sentinels for errors.Is.
var (
	ErrRemote   = errors.New("remote request failed")
	ErrTimeout  = errors.New("request timed out")
	ErrRejected = errors.New("rejected by server")
)

// ErrInvalidPassword reports a wrong old password on change-password.
var ErrInvalidPassword = &Error{Kind: KindRejected, Message: InvalidPasswordMessage}

// Error represents a failed API call.
type Error struct {
	Kind       Kind
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("clover: %s (%s, status %d)", e.Message, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("clover: %s (%s): %v", e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("clover: %s (%s)", e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels and other *Error values with the same kind
// and message.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRemote:
		return e.Kind == KindRemote
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrRejected:
		return e.Kind == KindRejected
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// KindOf returns the kind of err and whether it carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
