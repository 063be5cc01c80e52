package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// EventHandler receives the parse events of an XML document.
// Element names are upper-cased before delivery.
//
// Returning an error from any method aborts the parse.
type EventHandler interface {
	StartElement(name string, attrs []xml.Attr) error
	EndElement(name string) error
	CharData(text string) error
}

// SyntaxError reports malformed XML, with the line it was found on.
type SyntaxError struct {
	Err  error
	Line int
}

func (e *SyntaxError) Error() string {
	if e.Line == 1 {
		return fmt.Sprintf("XML error at line 1, check URL: %v", e.Err)
	}

	return fmt.Sprintf("XML error: %v at line %d", e.Err, e.Line)
}

func (e *SyntaxError) Unwrap() []error {
	return []error{ErrInvalidReturn, e.Err}
}

// Decode tokenizes the document in r and delivers its events to h.
//
// Tokenizer failures are returned as a [*SyntaxError]; errors returned by h are
// returned unchanged.
func Decode(r io.Reader, h EventHandler) error {
	d := NewXMLDecoder(r)

	for {
		tok, err := d.Token()

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			var serr *xml.SyntaxError
			if errors.As(err, &serr) {
				return &SyntaxError{Err: errors.New(serr.Msg), Line: serr.Line}
			}

			line, _ := d.InputPos()

			return &SyntaxError{Err: err, Line: line}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			err = h.StartElement(strings.ToUpper(t.Name.Local), t.Attr)
		case xml.EndElement:
			err = h.EndElement(strings.ToUpper(t.Name.Local))
		case xml.CharData:
			err = h.CharData(string(t))
		}

		if err != nil {
			return err
		}
	}
}

// quoting records how the accumulated text of a scalar is finalized.
type quoting int

const (
	quoteNone quoting = iota
	quoteText
	quoteBase64
)

// lookState tracks whether the current <value> is still looking for its payload.
type lookState int

const (
	lookNone     lookState = iota // inside some explicit element
	lookNoData                    // <value> opened, nothing seen yet
	lookImplicit                  // bare text seen, type still implicit string
	lookResolved                  // typed scalar closed, further text is ignored
)

var numericPattern = regexp.MustCompile(`^[+-]?[0-9 \t.]+$`)

type container struct {
	key     string
	elems   []*Value
	members []Member
	isMap   bool
}

func (c *container) value() *Value {
	if c.isMap {
		return NewStruct(c.members...)
	}

	return NewArray(c.elems...)
}

// decodeState is the state of one parse. It is created per document and
// never shared.
type decodeState struct {
	// pending is the payload of the innermost open <value>, set by a closing
	// typed scalar, array or struct.
	pending *Value
	// top is the last value closed outside any container.
	top    *Value
	method string
	stack  []*container
	params []*Value
	ac     strings.Builder
	typ    ScalarType
	qt     quoting
	lv     lookState
	fault  bool
}

func newDecodeState() *decodeState {
	return &decodeState{typ: String}
}

func (s *decodeState) StartElement(name string, _ []xml.Attr) error {
	switch name {
	case "STRUCT", "ARRAY":
		s.stack = append(s.stack, &container{isMap: name == "STRUCT"})
		s.qt = quoteNone
	case "NAME", "METHODNAME":
		s.ac.Reset()
	case "FAULT":
		s.fault = true
	case "PARAM":
		s.top = nil
	case "VALUE":
		s.ac.Reset()
		s.pending = nil
		s.typ = String
		s.qt = quoteNone
		s.lv = lookNoData
	case "I4", "INT", "STRING", "BOOLEAN", "DOUBLE", "DATETIME.ISO8601", "BASE64":
		s.ac.Reset()
		s.typ = scalarTypeOf(name)

		switch s.typ {
		case String, DateTime:
			s.qt = quoteText
		case Base64:
			s.qt = quoteBase64
		default:
			// Validated on the closing tag
			s.qt = quoteNone
		}
	case "MEMBER":
		s.ac.Reset()
		s.qt = quoteNone

		if c := s.current(); c != nil {
			c.key = ""
		}
	}

	if name != "VALUE" {
		s.lv = lookNone
	}

	return nil
}

func (s *decodeState) EndElement(name string) error {
	switch name {
	case "STRUCT", "ARRAY":
		c := s.current()
		if c == nil || c.isMap != (name == "STRUCT") {
			return fmt.Errorf("%w: unbalanced </%s>", ErrInvalidReturn, strings.ToLower(name))
		}

		s.stack = s.stack[:len(s.stack)-1]
		s.pending = c.value()
	case "NAME":
		if c := s.current(); c != nil {
			c.key = s.ac.String()
		}
	case "I4", "INT", "STRING", "BOOLEAN", "DOUBLE", "DATETIME.ISO8601", "BASE64":
		v, err := s.finishScalar(scalarTypeOf(name))
		if err != nil {
			return err
		}

		s.pending = v
		s.ac.Reset()
		s.qt = quoteNone
		s.lv = lookResolved
	case "VALUE":
		v := s.pending
		if v == nil {
			// No typed element and no container: implicitly a string, possibly empty
			v = NewString(s.ac.String())
		}

		s.pending = nil
		s.place(v)
	case "MEMBER", "DATA":
		s.ac.Reset()
		s.qt = quoteNone
	case "PARAM":
		if s.top == nil {
			return fmt.Errorf("%w: <param> without a value", ErrInvalidReturn)
		}

		s.params = append(s.params, s.top)
	case "METHODNAME":
		s.method = strings.TrimLeft(s.ac.String(), "\n\r\t ")
	}

	return nil
}

func (s *decodeState) CharData(text string) error {
	if s.lv == lookResolved {
		return nil
	}

	if s.lv == lookNoData {
		s.qt = quoteText
		s.lv = lookImplicit
	}

	s.ac.WriteString(text)

	return nil
}

func (s *decodeState) current() *container {
	if len(s.stack) == 0 {
		return nil
	}

	return s.stack[len(s.stack)-1]
}

// place stores a finished value into the open container, or at the top level.
func (s *decodeState) place(v *Value) {
	c := s.current()

	switch {
	case c == nil:
		s.top = v
	case c.isMap:
		c.members = append(c.members, Member{Name: c.key, Value: v})
		c.key = ""
	default:
		c.elems = append(c.elems, v)
	}
}

func (s *decodeState) finishScalar(t ScalarType) (*Value, error) {
	text := s.ac.String()

	switch {
	case t == Boolean:
		return NewBoolean(text == "1"), nil
	case s.qt == quoteText:
		return &Value{kind: KindScalar, typ: t, text: text}, nil
	case s.qt == quoteBase64:
		raw, err := decodeBase64(text)
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64: %w", ErrInvalidReturn, err)
		}

		return &Value{kind: KindScalar, typ: Base64, raw: raw}, nil
	}

	if !numericPattern.MatchString(text) {
		return nil, fmt.Errorf("%w: %q in <%s>", ErrNonNumericValue, text, t)
	}

	return &Value{kind: KindScalar, typ: t, text: text}, nil
}

func (s *decodeState) result() (*Value, error) {
	if s.top == nil {
		return nil, ErrEmptyPayload
	}

	return s.top, nil
}

func scalarTypeOf(upper string) ScalarType {
	if upper == "DATETIME.ISO8601" {
		return DateTime
	}

	return ScalarType(strings.ToLower(upper))
}

// Line breaks and blanks are common inside base64 payloads.
func decodeBase64(text string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}

		return r
	}, text)

	return base64.StdEncoding.DecodeString(clean)
}

// ParseMethodResponse decodes a <methodResponse> document.
//
// A <fault> yields a fault [*Response] built from the faultCode and
// faultString members. Any decoding problem is returned as an error.
func ParseMethodResponse(data []byte) (*Response, error) {
	s := newDecodeState()

	if err := Decode(bytes.NewReader(data), s); err != nil {
		return nil, err
	}

	v, err := s.result()
	if err != nil {
		return nil, err
	}

	if !s.fault {
		return NewResponse(v), nil
	}

	return faultFromValue(v)
}

func faultFromValue(v *Value) (*Response, error) {
	if v.Kind() != KindStruct {
		return nil, fmt.Errorf("%w: fault is a [%s], not a struct", ErrInvalidReturn, v.Kind())
	}

	fc, okc := v.StructMember("faultCode")
	fs, oks := v.StructMember("faultString")

	if !okc || !oks || fc.Kind() != KindScalar || fs.Kind() != KindScalar {
		return nil, fmt.Errorf("%w: fault lacks faultCode or faultString", ErrInvalidReturn)
	}

	code, err := fc.Int()
	if err != nil {
		return nil, fmt.Errorf("%w: faultCode: %w", ErrInvalidReturn, err)
	}

	return NewFaultResponse(int(code), fs.Text()), nil
}

// ParseMethodCall decodes a <methodCall> document into a [*Message].
func ParseMethodCall(data []byte) (*Message, error) {
	s := newDecodeState()

	if err := Decode(bytes.NewReader(data), s); err != nil {
		return nil, err
	}

	if s.method == "" {
		return nil, fmt.Errorf("%w: missing <methodName>", ErrInvalidReturn)
	}

	return NewMessage(s.method, s.params...), nil
}
