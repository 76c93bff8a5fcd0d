package webservice

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorKind categorizes failures delivered in a Result.
type ErrorKind string

const (
	KindInvalidTarget ErrorKind = "INVALID_TARGET" // URL could not be parsed or rebuilt
	KindHTTPStatus    ErrorKind = "HTTP_STATUS"    // non-2xx response
	KindServerError   ErrorKind = "SERVER_ERROR"   // structured error payload from the server
	KindTransport     ErrorKind = "TRANSPORT"      // network failure
	KindUnknown       ErrorKind = "UNKNOWN"
)

// Sentinel errors for use with errors.Is.
var (
	ErrInvalidTarget = errors.New("webservice: invalid target")
	ErrTransport     = errors.New("webservice: transport failure")
)

// InvalidTargetError reports a URL that could not be turned into a request.
type InvalidTargetError struct {
	URL string
	Err error
}

func (e *InvalidTargetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webservice: invalid url %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("webservice: invalid url %q", e.URL)
}

func (e *InvalidTargetError) Unwrap() error   { return e.Err }
func (e *InvalidTargetError) Kind() ErrorKind { return KindInvalidTarget }

func (e *InvalidTargetError) Is(target error) bool {
	return target == ErrInvalidTarget
}

// HTTPStatusError reports a non-2xx response without a structured error payload.
type HTTPStatusError struct {
	Status  int
	Message string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("webservice: http status %d: %s", e.Status, e.Message)
}

func (e *HTTPStatusError) Kind() ErrorKind { return KindHTTPStatus }

// ServerError is an application-level error declared by the server in the
// response body.
type ServerError struct {
	Code    string
	Message map[string]any
	Context map[string]any
	Status  int
}

func (e *ServerError) Error() string {
	if msg, ok := e.Message["message"]; ok {
		return fmt.Sprintf("webservice: server error %s: %v", e.Code, msg)
	}
	return fmt.Sprintf("webservice: server error %s", e.Code)
}

func (e *ServerError) Kind() ErrorKind { return KindServerError }

// TransportError wraps an underlying network failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("webservice: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Kind() ErrorKind { return KindTransport }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// UnknownError is the catch-all failure.
type UnknownError struct {
	Message string
}

func (e *UnknownError) Error() string {
	return "webservice: " + e.Message
}

func (e *UnknownError) Kind() ErrorKind { return KindUnknown }

type kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ErrorCode returns a code identifying err for reports and history: the
// status for HTTP errors, the declared code for server errors, the message
// for unknown errors and the URL for invalid targets. Transport failures
// have no code. Interruption hooks see InterruptionCode instead.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var (
		statusErr  *HTTPStatusError
		serverErr  *ServerError
		unknownErr *UnknownError
		targetErr  *InvalidTargetError
	)
	switch {
	case errors.As(err, &serverErr):
		return serverErr.Code
	case errors.As(err, &statusErr):
		return strconv.Itoa(statusErr.Status)
	case errors.As(err, &unknownErr):
		return unknownErr.Message
	case errors.As(err, &targetErr):
		return targetErr.URL
	default:
		return ""
	}
}

// InterruptionCode returns the code declared by the server for err: the
// structured error code, or the HTTP status. Client-side failures yield "".
func InterruptionCode(err error) string {
	if e, ok := AsServerError(err); ok {
		return e.Code
	}
	if e, ok := AsHTTPStatusError(err); ok {
		return strconv.Itoa(e.Status)
	}
	return ""
}

// AsServerError extracts a ServerError from err.
func AsServerError(err error) (*ServerError, bool) {
	var e *ServerError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AsHTTPStatusError extracts an HTTPStatusError from err.
func AsHTTPStatusError(err error) (*HTTPStatusError, bool) {
	var e *HTTPStatusError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
