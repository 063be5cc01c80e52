// Package xmlrpc provides a client side implementation of the XML-RPC protocol.
//
// # Overview
//
// The package converts Go values into a typed XML-RPC value model ([Value]),
// serializes it into a <methodCall> document ([Message]), sends that document
// to a server over HTTP/1.0 ([Client]) and decodes the reply into a [Response]
// holding either a value or a [Fault].
//
// # Features
//
//   - Explicit value model: scalars ([String], [Int], [I4], [Boolean], [Double], [DateTime], [Base64]), arrays and structs.
//   - Streaming decoder driven by XML parse events ([Decode], [EventHandler]); one decoder state per document.
//   - Native bridge between Go values and [Value] ([FromNative], [ToNative]).
//   - Plain and TLS transports, HTTP proxies, Basic authentication for the server and the proxy.
//   - Transport and protocol failures are reported uniformly as fault responses.
//   - Bounded pools of independent clients with retries and rate limiting ([ClientPool]).
//   - TOML configuration files ([LoadConfig]).
//   - Pluggable tokenizer through [NewXMLDecoder].
//
// # Client Example
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"time"
//
//		"github.com/rrb3942/xmlrpc"
//	)
//
//	func main() {
//		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//		defer cancel()
//
//		client, err := xmlrpc.NewClient("http://localhost:8080/RPC2")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Arguments are converted with FromNative. Unsupported types are returned as errors.
//		resp, err := client.Call(ctx, "examples.getStateName", 41)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Transport errors, HTTP errors and server faults all arrive here.
//		if resp.IsFault() {
//			log.Fatalf("fault %d: %s", resp.FaultCode(), resp.FaultString())
//		}
//
//		name, err := xmlrpc.ToNative(resp.Value())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		log.Printf("state: %v", name)
//	}
package xmlrpc

import (
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

// DefaultEncoding is used when a document declares no encoding, or one that is not supported.
const DefaultEncoding = "UTF-8"

var encodingDecl = regexp.MustCompile(`(?i)<\?xml[^>]*\s*encoding\s*=\s*['"]([^"']*)['"]`)

// XMLDecoder defines the interface of the tokenizer used by [Decode],
// compatible with [encoding/xml.Decoder].
type XMLDecoder interface {
	// Token returns the next XML token in the input stream, or [io.EOF] at the end.
	Token() (xml.Token, error)
	// InputPos returns the line and column of the current decoder position.
	InputPos() (line, column int)
}

// NewXMLDecoder defines the function used to create new [XMLDecoder] instances.
// By default, it returns a strict [encoding/xml.Decoder] that honors the
// encoding named in the XML declaration. Applications can replace this
// variable *at startup* to use a different tokenizer.
//
// Example:
//
//	func init() {
//	    xmlrpc.NewXMLDecoder = func(r io.Reader) xmlrpc.XMLDecoder {
//	        d := xml.NewDecoder(r)
//	        d.Strict = false
//	        return d
//	    }
//	}
var NewXMLDecoder = func(r io.Reader) XMLDecoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charsetReader

	return d
}

// charsetReader converts ISO-8859-1 and US-ASCII input to UTF-8. Unsupported
// labels are read as UTF-8.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "ISO-8859-1", "US-ASCII":
		return charset.NewReaderLabel(label, input)
	}

	return input, nil
}

// DetectEncoding returns the encoding declared by the XML declaration in data.
//
// Only ISO-8859-1, UTF-8 and US-ASCII are recognized; anything else, including
// no declaration at all, yields [DefaultEncoding].
func DetectEncoding(data []byte) string {
	m := encodingDecl.FindSubmatch(data)
	if m == nil {
		return DefaultEncoding
	}

	enc := strings.ToUpper(strings.TrimSpace(string(m[1])))

	switch enc {
	case "ISO-8859-1", "UTF-8", "US-ASCII":
		return enc
	}

	return DefaultEncoding
}
