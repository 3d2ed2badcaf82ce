package buckets

import (
	"errors"
	"fmt"
)

// ErrKind categorises a client error without exposing transport internals.
// Every failure path of the client maps to exactly one kind, giving callers
// a single consistent API to branch on.
type ErrKind int

const (
	ErrKindUnknown         ErrKind = iota
	ErrKindInvalidArgument         // bad local input, never sent over the network
	ErrKindTransport               // connection, timeout, or mid-stream network failure
	ErrKindHTTPStatus              // server answered with a non-success status
	ErrKindNotFound                // 404-class response (distinguished HTTPStatus)
	ErrKindDecode                  // malformed listing-stream content
	ErrKindPayloadStream           // the local upload source failed mid-transfer
	ErrKindClientClosed            // operation attempted after Close
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindInvalidArgument:
		return "invalid_argument"
	case ErrKindTransport:
		return "transport"
	case ErrKindHTTPStatus:
		return "http_status"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindDecode:
		return "decode"
	case ErrKindPayloadStream:
		return "payload_stream"
	case ErrKindClientClosed:
		return "client_closed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all client operations.
// Callers inspect it via the Is* predicates below, or with errors.As when
// they need the status code, the server error code, or the raw body.
type Error struct {
	Kind    ErrKind
	Op      Op // the client operation that failed
	Message string
	// StatusCode and Code are set for ErrKindHTTPStatus and ErrKindNotFound:
	// the HTTP status and the service's error code (e.g. "BucketNotFound").
	StatusCode int
	Code       string
	// Body holds the raw (possibly truncated) error response body.
	Body  []byte
	Cause error // original transport-level error, preserved for logging
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
	if e.StatusCode != 0 {
		if e.Code != "" {
			s += fmt.Sprintf(" (status %d, code %s)", e.StatusCode, e.Code)
		} else {
			s += fmt.Sprintf(" (status %d)", e.StatusCode)
		}
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

func newError(kind ErrKind, op Op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

func wrapError(kind ErrKind, op Op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsInvalidArgument reports whether err was caused by bad input from the
// caller (empty bucket/object name, malformed metadata key, ...).
func IsInvalidArgument(err error) bool {
	return kindOf(err) == ErrKindInvalidArgument
}

// IsTransport reports whether err is a network-level failure: connection
// errors, timeouts, cancellation, or a response body cut short.
func IsTransport(err error) bool {
	return kindOf(err) == ErrKindTransport
}

// IsHTTPStatus reports whether the server answered with a non-success
// status. This includes not-found responses; use IsNotFound to single
// those out.
func IsHTTPStatus(err error) bool {
	k := kindOf(err)
	return k == ErrKindHTTPStatus || k == ErrKindNotFound
}

// IsNotFound reports whether err represents a missing bucket or object.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsDecode reports whether err was caused by malformed listing-stream
// content (an invalid or truncated record).
func IsDecode(err error) bool {
	return kindOf(err) == ErrKindDecode
}

// IsPayloadStream reports whether err was caused by the caller's upload
// source failing mid-transfer.
func IsPayloadStream(err error) bool {
	return kindOf(err) == ErrKindPayloadStream
}

// IsClientClosed reports whether err was returned because the client had
// already been closed.
func IsClientClosed(err error) bool {
	return kindOf(err) == ErrKindClientClosed
}

// StatusCode extracts the HTTP status from any error in the chain.
// It returns 0 when err carries no status.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
