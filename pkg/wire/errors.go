package wire

import (
	"fmt"
	"runtime"

	"github.com/jackc/pgerrcode"
)

// Kind classifies an Err the way spec §7 enumerates error kinds. Callers
// that need to branch on failure mode should switch on Kind rather than
// string-matching Error().
type Kind string

const (
	KindProtocol      Kind = "protocol-error"
	KindAuth          Kind = "auth-error"
	KindServer        Kind = "server-error"
	KindTimeout       Kind = "timeout-error"
	KindClosed        Kind = "closed-error"
	KindInvalidType   Kind = "invalid-type"
	KindInvalidFormat Kind = "invalid-format"
)

// Err is the structured error type this engine uses for the Kinds above.
// Framer and message-parsing failures in this package are plain errors,
// which pkg/conn wraps with NewProtocolError. It is grounded on the teacher's own Err
// (pkg/pgwire/error.go): an embedded ErrorResponse-shaped field set plus a
// wrapped cause, but tagged with a Kind instead of always assuming a real
// backend ErrorResponse produced it.
type Err struct {
	Kind     Kind
	Severity Severity
	Code     string // SQLSTATE
	Message  string
	Detail   string
	Hint     string
	File     string
	Line     int

	Cause error
}

func (e *Err) Error() string {
	if e.Code != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s %s: %s: %s", e.Severity, e.Code, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s %s: %s", e.Severity, e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Err) Unwrap() error { return e.Cause }

// Timeout reports whether this failure was a connect/handshake timeout,
// satisfying the informal net.Error convention.
func (e *Err) Timeout() bool { return e.Kind == KindTimeout }

// IsFatal reports whether the originating server severity should close the
// connection outright (spec §7: fatal/panic severities close, lower
// severities just fail the query).
func (e *Err) IsFatal() bool { return e.Severity.IsFatal() }

func newErr(kind Kind, severity Severity, code, message string, cause error) *Err {
	_, file, line, _ := runtime.Caller(2)
	return &Err{
		Kind: kind, Severity: severity, Code: code,
		Message: message, File: file, Line: line, Cause: cause,
	}
}

// NewProtocolError wraps a framer/decoder failure. These always close the
// connection: the byte stream can no longer be trusted.
func NewProtocolError(cause error) *Err {
	return newErr(KindProtocol, SeverityFatal, pgerrcode.ProtocolViolation, "protocol violation", cause)
}

// NewAuthError wraps a handshake credential rejection.
func NewAuthError(message string, cause error) *Err {
	return newErr(KindAuth, SeverityFatal, pgerrcode.InvalidAuthorizationSpecification, message, cause)
}

// NewTimeoutError wraps a connect-or-authenticate deadline expiry.
func NewTimeoutError(message string) *Err {
	return newErr(KindTimeout, SeverityFatal, pgerrcode.ConnectionException, message, nil)
}

// NewClosedError reports an operation attempted on a closed connection or
// pool.
func NewClosedError(message string) *Err {
	return newErr(KindClosed, SeverityFatal, pgerrcode.ConnectionDoesNotExist, message, nil)
}

// NewServerError converts a backend ErrorResponse's field map into an Err.
func NewServerError(fields ErrorFields) *Err {
	return &Err{
		Kind:     KindServer,
		Severity: Severity(fields.Severity()),
		Code:     fields.Code(),
		Message:  fields.Message(),
		Detail:   fields.Detail(),
		Hint:     fields.Hint(),
	}
}

// NewInvalidTypeError reports a mismatch between a declared PgType and a
// runtime value passed to Encode.
func NewInvalidTypeError(t PgType, value any) *Err {
	return newErr(KindInvalidType, SeverityError, pgerrcode.DatatypeMismatch,
		fmt.Sprintf("value %#v is not valid for postgres type %q", value, t), nil)
}

// NewInvalidFormatError reports malformed input to a decoder (e.g. a
// non-canonical UUID string).
func NewInvalidFormatError(message string, cause error) *Err {
	return newErr(KindInvalidFormat, SeverityError, pgerrcode.InvalidTextRepresentation, message, cause)
}
