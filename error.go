package xmlrpc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidType        = errors.New("xmlrpc: invalid type")
	ErrAlreadyInitialized = errors.New("xmlrpc: value already initialized")
	ErrNonNumericValue    = errors.New("xmlrpc: non-numeric value received in INT or DOUBLE")
	ErrUnsupportedType    = errors.New("xmlrpc: native value has no XML-RPC encoding")
	ErrConnectionFailed   = errors.New("xmlrpc: connection failed")
	ErrHTTPError          = errors.New("xmlrpc: http error")
	ErrInvalidReturn      = errors.New("xmlrpc: invalid return payload")
	ErrUnknownScheme      = errors.New("xmlrpc: unknown scheme")
)

// ErrEmptyPayload is returned when a document parsed cleanly but produced no value.
var ErrEmptyPayload = fmt.Errorf("%w (empty payload)", ErrInvalidReturn)

const (
	// XMLFaultBase is the first fault code reserved for XML parse errors.
	XMLFaultBase = 100
	// UserFaultBase is the first fault code available to applications.
	UserFaultBase = 800
)

var (
	FaultUnknownMethod     = NewFault(1, "Unknown method")
	FaultInvalidReturn     = NewFault(2, "Invalid return payload: enable debugging to examine incoming payload")
	FaultIncorrectParams   = NewFault(3, "Incorrect parameters passed to method")
	FaultIntrospectUnknown = NewFault(4, "Can't introspect: method unknown")
	FaultHTTPError         = NewFault(5, "Didn't receive 200 OK from remote server.")
	FaultConnectionFailed  = NewFault(103, "Connection failed")
)

// faultKinds maps the faults produced by the client to the sentinel they match.
var faultKinds = map[int]error{
	FaultInvalidReturn.Code:    ErrInvalidReturn,
	FaultHTTPError.Code:        ErrHTTPError,
	FaultConnectionFailed.Code: ErrConnectionFailed,
}

// Fault represents an XML-RPC fault: a numeric code and a human readable message.
//
// [Fault] supports the go error interface and may be used as a normal error.
// Two faults match with [errors.Is] when their codes are equal. The faults
// produced by the client also match [ErrInvalidReturn], [ErrHTTPError] and
// [ErrConnectionFailed] respectively.
type Fault struct {
	Message string
	Code    int
}

// NewFault returns a new [Fault] with the given code and message.
func NewFault(code int, msg string) Fault {
	return Fault{Code: code, Message: msg}
}

// WithDetail returns a copy of f with detail appended to its message in parentheses.
func (f Fault) WithDetail(detail string) Fault {
	return Fault{Code: f.Code, Message: f.Message + " (" + detail + ")"}
}

// Error implements the error interface.
func (f Fault) Error() string {
	return fmt.Sprintf("xmlrpc: fault %d: %s", f.Code, f.Message)
}

// Returns true if t is of type [Fault] and their Code fields match, or t is
// the sentinel of f's code.
func (f Fault) Is(t error) bool {
	if kind, ok := faultKinds[f.Code]; ok && t == kind {
		return true
	}

	if ft, ok := t.(Fault); ok {
		return f.Code == ft.Code
	}

	if ft, ok := t.(*Fault); ok && ft != nil {
		return f.Code == ft.Code
	}

	return false
}
