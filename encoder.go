package xmlrpc

import (
	"bufio"
	"encoding/base64"
	"io"
	"regexp"
	"strings"
)

const xmlHeader = "<?xml version=\"1.0\"?>\n"

// Escapes the characters significant in XML text. Single quotes are left
// alone, matching what XML-RPC servers have historically received.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

var lineBreaks = regexp.MustCompile("[\r\n]+")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// Encoder writes the wire form of values to an [io.Writer].
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns a new [*Encoder] writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes the <value> element for v, followed by a newline.
func (e *Encoder) Encode(v *Value) error {
	writeValue(e.w, v)

	return e.w.Flush()
}

// Serialize returns the <value> element for v.
//
// Serializing the same value always yields the same text.
func Serialize(v *Value) string {
	var sb strings.Builder

	writeValue(&sb, v)

	return sb.String()
}

// Serialize returns the <value> element for v. See [Serialize].
func (v *Value) Serialize() string {
	return Serialize(v)
}

type textWriter interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

func writeValue(w textWriter, v *Value) {
	_, _ = w.WriteString("<value>")
	writeData(w, v)
	_, _ = w.WriteString("</value>\n")
}

func writeData(w textWriter, v *Value) {
	switch v.Kind() {
	case KindStruct:
		_, _ = w.WriteString("<struct>\n")

		for _, m := range v.members {
			_, _ = w.WriteString("<member><name>")
			_, _ = w.WriteString(escapeText(m.Name))
			_, _ = w.WriteString("</name>\n")
			writeValue(w, m.Value)
			_, _ = w.WriteString("</member>\n")
		}

		_, _ = w.WriteString("</struct>")
	case KindArray:
		_, _ = w.WriteString("<array>\n<data>\n")

		for _, e := range v.elems {
			writeValue(w, e)
		}

		_, _ = w.WriteString("</data>\n</array>")
	case KindScalar:
		writeScalar(w, v)
	case KindUndefined:
		// Nothing to emit, the peer reads an empty string.
	}
}

func writeScalar(w textWriter, v *Value) {
	tag := string(v.typ)

	_ = w.WriteByte('<')
	_, _ = w.WriteString(tag)
	_ = w.WriteByte('>')

	switch v.typ {
	case Base64:
		enc := base64.NewEncoder(base64.StdEncoding, w)
		_, _ = enc.Write(v.raw)
		_ = enc.Close()
	case Boolean:
		if v.boolean {
			_ = w.WriteByte('1')
		} else {
			_ = w.WriteByte('0')
		}
	case String:
		_, _ = w.WriteString(escapeText(v.text))
	default:
		_, _ = w.WriteString(v.text)
	}

	_, _ = w.WriteString("</")
	_, _ = w.WriteString(tag)
	_ = w.WriteByte('>')
}

// serializeCall renders a complete <methodCall> document. Every run of line
// break characters is collapsed into a single CRLF.
func serializeCall(method string, params []*Value) []byte {
	var sb strings.Builder

	sb.WriteString(xmlHeader)
	sb.WriteString("<methodCall>\n<methodName>")
	sb.WriteString(escapeText(method))
	sb.WriteString("</methodName>\n<params>\n")

	for _, p := range params {
		sb.WriteString("<param>\n")
		writeValue(&sb, p)
		sb.WriteString("</param>\n")
	}

	sb.WriteString("</params>\n</methodCall>\n")

	return []byte(lineBreaks.ReplaceAllString(sb.String(), "\r\n"))
}

// serializeResponse renders a complete <methodResponse> document for either a
// value or a fault.
func serializeResponse(r *Response) []byte {
	var sb strings.Builder

	sb.WriteString("<methodResponse>\n")

	if r.IsFault() {
		sb.WriteString("<fault>\n<value>\n<struct>\n")
		sb.WriteString("<member>\n<name>faultCode</name>\n")
		writeValue(&sb, NewInt(int64(r.fault.Code)))
		sb.WriteString("</member>\n<member>\n<name>faultString</name>\n")
		// Already escaped when the response was built
		sb.WriteString("<value><string>")
		sb.WriteString(r.fault.Message)
		sb.WriteString("</string></value>\n")
		sb.WriteString("</member>\n</struct>\n</value>\n</fault>")
	} else {
		sb.WriteString("<params>\n<param>\n")
		writeValue(&sb, r.value)
		sb.WriteString("</param>\n</params>")
	}

	sb.WriteString("\n</methodResponse>")

	return []byte(sb.String())
}
