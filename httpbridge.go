package xmlrpc

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"net/http"
	"net/textproto"
	"regexp"
	"strconv"
)

const closingResponse = "</methodResponse>"

var statusOK = regexp.MustCompile(`^HTTP/[0-9.]+ 200 `)

// requestLine describes where an HTTP request is sent and how it is addressed.
type requestLine struct {
	scheme    string
	host      string
	path      string
	user      string
	password  string
	proxyUser string
	proxyPass string
	userAgent string
	port      int
	proxied   bool
}

// buildRequest renders an HTTP/1.0 POST carrying payload. Through a proxy the
// request target is the absolute URL of the server.
func buildRequest(rl requestLine, payload []byte) []byte {
	var b bytes.Buffer

	b.WriteString("POST ")

	if rl.proxied {
		b.WriteString(rl.scheme)
		b.WriteString("://")
		b.WriteString(rl.host)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(rl.port))
	}

	b.WriteString(rl.path)
	b.WriteString(" HTTP/1.0\r\n")

	b.WriteString("User-Agent: ")
	b.WriteString(rl.userAgent)
	b.WriteString("\r\nHost: ")
	b.WriteString(hostHeader(rl))
	b.WriteString("\r\n")

	if rl.user != "" {
		b.WriteString("Authorization: Basic ")
		b.WriteString(basicAuth(rl.user, rl.password))
		b.WriteString("\r\n")
	}

	if rl.proxied && rl.proxyUser != "" {
		b.WriteString("Proxy-Authorization: Basic ")
		b.WriteString(basicAuth(rl.proxyUser, rl.proxyPass))
		b.WriteString("\r\n")
	}

	b.WriteString("Content-Type: text/xml\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(payload)))
	b.WriteString("\r\n\r\n")
	b.Write(payload)

	return b.Bytes()
}

func hostHeader(rl requestLine) string {
	if (rl.scheme == "http" && rl.port == 80) || (rl.scheme == "https" && rl.port == 443) {
		return rl.host
	}

	return rl.host + ":" + strconv.Itoa(rl.port)
}

func basicAuth(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}

// ParseResponse decodes raw, everything read from the server, into a [*Response].
//
// A leading HTTP status line other than 200 yields a [FaultHTTPError] response
// without looking at the body. Otherwise the header block is split off, the body
// is cut after the closing </methodResponse> tag, so trailing bytes added by
// intermediaries are ignored, and the rest is decoded with [ParseMethodResponse].
// Any decoding failure, including an empty body, yields a [FaultInvalidReturn] response.
//
// ParseResponse never returns nil.
func ParseResponse(raw []byte) *Response {
	resp, _, _ := parseHTTPResponse(raw)

	return resp
}

// parseHTTPResponse is [ParseResponse] reporting what went wrong: the status
// line when it was not 200, or the decoding error.
func parseHTTPResponse(raw []byte) (resp *Response, badStatus string, err error) {
	var header http.Header

	if bytes.HasPrefix(raw, []byte("HTTP")) {
		if !statusOK.Match(raw) {
			status, _, _ := bytes.Cut(raw, []byte("\n"))
			badStatus = string(bytes.TrimRight(status, "\r"))

			return newFaultFrom(FaultHTTPError.WithDetail(badStatus)), badStatus, nil
		}

		header, raw = splitHeader(raw)
	}

	if i := bytes.Index(raw, []byte(closingResponse)); i >= 0 {
		raw = raw[:i+len(closingResponse)]
	}

	resp, err = ParseMethodResponse(raw)
	if err != nil {
		resp = newFaultFrom(FaultInvalidReturn)
	}

	resp.header = header

	return resp, "", err
}

// splitHeader separates the header block from the body. The status line is
// skipped; the headers are parsed leniently.
func splitHeader(raw []byte) (http.Header, []byte) {
	head, body, found := bytes.Cut(raw, []byte("\r\n\r\n"))
	if !found {
		head, body, found = bytes.Cut(raw, []byte("\n\n"))
	}

	if !found {
		// Status line and headers only
		head, body = raw, nil
	}

	_, fields, _ := bytes.Cut(head, []byte("\n"))
	block := make([]byte, 0, len(fields)+4)
	block = append(append(block, fields...), "\r\n\r\n"...)
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(block)))

	// A malformed header line ends header parsing, what was read is kept
	mh, _ := tp.ReadMIMEHeader()

	return http.Header(mh), body
}
