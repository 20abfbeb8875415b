package dictprotocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the DICT session.
var (
	// ErrSessionBroken indicates an earlier transport or framing failure left
	// the stream out of sync; the session must be closed.
	ErrSessionBroken = errors.New("session unusable after earlier failure")

	// ErrEmptyWord indicates a lookup was attempted without a word.
	ErrEmptyWord = errors.New("empty word")

	// ErrCommandTooLong indicates a command line longer than MaxLineLength.
	// Nothing is sent and the session stays usable.
	ErrCommandTooLong = errors.New("command exceeds maximum line length")
)

// ProtocolErrorKind categorizes protocol errors.
type ProtocolErrorKind int

const (
	// ErrKindMalformedStatus indicates a line that should carry a status code does not.
	ErrKindMalformedStatus ProtocolErrorKind = iota
	// ErrKindUnexpectedStatus indicates a well-formed status the command cannot handle.
	ErrKindUnexpectedStatus
	// ErrKindMalformedHeader indicates a bad 151 definition header line.
	ErrKindMalformedHeader
	// ErrKindInvalidCount indicates the 150 detail does not start with a count.
	ErrKindInvalidCount
	// ErrKindUnexpectedEOF indicates the server closed the stream mid-response.
	ErrKindUnexpectedEOF
)

// ProtocolError represents a response that does not match the shape expected
// for the command in flight.
type ProtocolError struct {
	Kind    ProtocolErrorKind
	Line    string // The offending line, if any
	Message string // Additional context
	Cause   error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	switch e.Kind {
	case ErrKindMalformedStatus:
		return fmt.Sprintf("protocol error: malformed status line %q", e.Line)
	case ErrKindUnexpectedStatus:
		return fmt.Sprintf("protocol error: unexpected status %q for %s", e.Line, e.Message)
	case ErrKindMalformedHeader:
		return fmt.Sprintf("protocol error: malformed definition header %q", e.Line)
	case ErrKindInvalidCount:
		return fmt.Sprintf("protocol error: invalid definition count in %q", e.Line)
	case ErrKindUnexpectedEOF:
		return fmt.Sprintf("protocol error: stream ended while reading %s", e.Message)
	default:
		return fmt.Sprintf("protocol error: %s", e.Message)
	}
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

func newMalformedStatusError(line string) error {
	return &ProtocolError{Kind: ErrKindMalformedStatus, Line: line}
}

func newUnexpectedStatusError(status Status, command string) error {
	return &ProtocolError{Kind: ErrKindUnexpectedStatus, Line: status.String(), Message: command}
}

func newMalformedHeaderError(line string) error {
	return &ProtocolError{Kind: ErrKindMalformedHeader, Line: line}
}

func newInvalidCountError(line string, cause error) error {
	return &ProtocolError{Kind: ErrKindInvalidCount, Line: line, Cause: cause}
}

func newUnexpectedEOFError(what string, cause error) error {
	return &ProtocolError{Kind: ErrKindUnexpectedEOF, Message: what, Cause: cause}
}

// ConnectionError represents a connection-related error.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
