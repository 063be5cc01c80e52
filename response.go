package xmlrpc

import (
	"net/http"
)

// Response is the outcome of a method call: either a [*Value] or a [Fault].
//
// A fault's message is XML escaped when the response is built, so it can be
// embedded in a document as is. Responses are immutable.
type Response struct {
	value  *Value
	header http.Header
	fault  Fault
	unsent bool // the connection was never established, so the request was not written
}

// NewResponse builds a successful response carrying v.
func NewResponse(v *Value) *Response {
	return &Response{value: orEmpty(v)}
}

// NewFaultResponse builds a fault response. msg is XML escaped.
//
// Example:
//
//	resp := xmlrpc.NewFaultResponse(xmlrpc.FaultUnknownMethod.Code, "no such method")
func NewFaultResponse(code int, msg string) *Response {
	return &Response{fault: Fault{Code: code, Message: escapeText(msg)}}
}

// newFaultFrom builds a fault response from a [Fault].
func newFaultFrom(f Fault) *Response {
	return NewFaultResponse(f.Code, f.Message)
}

// IsFault returns true if the response carries a fault.
func (r *Response) IsFault() bool {
	return r.value == nil
}

// Value returns the returned value, nil for a fault.
func (r *Response) Value() *Value {
	return r.value
}

// FaultCode returns the fault code, 0 if the response is not a fault.
func (r *Response) FaultCode() int {
	return r.fault.Code
}

// FaultString returns the escaped fault message, empty if the response is not a fault.
func (r *Response) FaultString() string {
	return r.fault.Message
}

// Err returns the fault as an error, nil if the response is not a fault.
//
// The error can be matched with [errors.Is] against the predefined faults.
func (r *Response) Err() error {
	if !r.IsFault() {
		return nil
	}

	return r.fault
}

// Header returns the HTTP headers received with the response, nil if there were none.
func (r *Response) Header() http.Header {
	return r.header
}

// Serialize returns the <methodResponse> document for r.
func (r *Response) Serialize() []byte {
	return serializeResponse(r)
}
