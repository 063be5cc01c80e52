package xmlrpc

import (
	"io"
)

// Message is an XML-RPC method call: a method name and an ordered list of parameters.
//
// The serialized payload is computed on first use and cached until the message
// is modified. Message is NOT goroutine-safe.
type Message struct {
	method  string
	params  []*Value
	payload []byte
}

// NewMessage builds a new message calling method with params.
//
// Example:
//
//	msg := xmlrpc.NewMessage("examples.getStateName", xmlrpc.NewInt(41))
func NewMessage(method string, params ...*Value) *Message {
	m := &Message{method: method}

	for _, p := range params {
		m.AddParam(p)
	}

	return m
}

// Method returns the method name.
func (m *Message) Method() string {
	return m.method
}

// SetMethod changes the method name.
func (m *Message) SetMethod(method string) {
	m.method = method
	m.payload = nil
}

// AddParam appends a parameter. A nil parameter is sent as an empty string.
func (m *Message) AddParam(p *Value) {
	m.params = append(m.params, orEmpty(p))
	m.payload = nil
}

// Param returns the i-th parameter.
func (m *Message) Param(i int) *Value {
	return m.params[i]
}

// NumParams returns the number of parameters.
func (m *Message) NumParams() int {
	return len(m.params)
}

// Params returns a copy of the parameter list.
func (m *Message) Params() []*Value {
	return append([]*Value(nil), m.params...)
}

// Payload returns the serialized <methodCall> document.
//
// The returned slice is shared with the message and must not be modified.
func (m *Message) Payload() []byte {
	if m.payload == nil {
		m.payload = serializeCall(m.method, m.params)
	}

	return m.payload
}

// ParseResponse decodes raw, the full bytes read from the server including any
// HTTP status line and headers, into a [*Response]. See [ParseResponse].
func (m *Message) ParseResponse(raw []byte) *Response {
	return ParseResponse(raw)
}

// ParseResponseReader reads r to the end and decodes the result, see [Message.ParseResponse].
// A read failure yields a [FaultConnectionFailed] response.
func (m *Message) ParseResponseReader(r io.Reader) *Response {
	raw, err := io.ReadAll(r)
	if err != nil {
		return NewFaultResponse(FaultConnectionFailed.Code, "Read error: "+err.Error())
	}

	return m.ParseResponse(raw)
}
