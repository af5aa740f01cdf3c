package vibeproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	KindConnectionRefused ErrorKind = "connection_refused"
	KindTimeout           ErrorKind = "timeout"
	KindCancelled         ErrorKind = "cancelled"
	KindBackend           ErrorKind = "backend"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrConnectionRefused = errors.New("vibeproxy: connection refused")
	ErrTimeout           = errors.New("vibeproxy: request timed out")
	ErrCancelled         = errors.New("vibeproxy: request cancelled")
	ErrBackend           = errors.New("vibeproxy: backend error")
)

// Error is returned by every Client operation that reaches the backend.
type Error struct {
	Kind ErrorKind
	// StatusCode is the backend HTTP status when one was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("vibeproxy: %s (http %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("vibeproxy: %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinelFor(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindConnectionRefused:
		return ErrConnectionRefused
	case KindTimeout:
		return ErrTimeout
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrBackend
	}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is nil or not a *Error.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// classify maps a transport, SDK or context failure onto an *Error. ctx is the
// context the request ran under; its state wins over the error text.
func classify(ctx context.Context, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}

	if ctx != nil && ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Message: "request deadline exceeded", Err: err}
		}
		msg := "request cancelled"
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			msg = cause.Error()
		}
		return &Error{Kind: KindCancelled, Message: msg, Err: err}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCancelled, Message: "request cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request deadline exceeded", Err: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &Error{Kind: KindConnectionRefused, Message: "connection refused", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "network operation timed out", Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindBackend, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &Error{Kind: KindBackend, StatusCode: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}

	return &Error{Kind: KindBackend, Message: err.Error(), Err: err}
}

// status is the metrics label for an outcome.
func status(err *Error) string {
	if err == nil {
		return "ok"
	}
	return string(err.Kind)
}
