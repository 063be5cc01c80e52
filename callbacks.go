package xmlrpc

import (
	"context"
	"log/slog"
)

// Callbacks defines a set of functions a [Client] calls on specific events
// during an exchange. This allows for custom logging, metrics or debugging.
//
// Callbacks are set with [WithCallbacks]. A nil field is skipped. Callbacks
// must be safe for concurrent use when the client is shared between goroutines
// or used through a [ClientPool].
//
// Example:
//
//	client, err := xmlrpc.NewClient("http://localhost:8080/RPC2", xmlrpc.WithCallbacks(xmlrpc.Callbacks{
//	    OnHTTPError: func(ctx context.Context, status string) {
//	        slog.WarnContext(ctx, "RPC server refused call", "status", status)
//	    },
//	}))
type Callbacks struct {
	// OnConnectError is called when the proxy or the server cannot be reached.
	// endpoint is the host:port that was dialed.
	OnConnectError func(ctx context.Context, endpoint string, err error)

	// OnHTTPError is called when the server answered with a status other than 200.
	// status is the full status line.
	OnHTTPError func(ctx context.Context, status string)

	// OnDecodingError is called when the response body could not be decoded.
	// raw holds everything read from the server; err carries the line number
	// for malformed XML (see [SyntaxError]).
	OnDecodingError func(ctx context.Context, raw []byte, err error)

	// OnExchange is called after every completed write/read exchange with the
	// request and the raw response.
	OnExchange func(ctx context.Context, request, response []byte)
}

// DefaultCallbacks returns the callbacks used when none are configured, logging to l.
func DefaultCallbacks(l *slog.Logger) Callbacks {
	return Callbacks{
		OnConnectError: func(ctx context.Context, endpoint string, err error) {
			l.ErrorContext(ctx, "XML-RPC connection failed", "endpoint", endpoint, "error", err)
		},
		OnHTTPError: func(ctx context.Context, status string) {
			l.ErrorContext(ctx, "XML-RPC HTTP error", "status", status)
		},
		OnDecodingError: func(ctx context.Context, raw []byte, err error) {
			l.ErrorContext(ctx, "XML-RPC invalid return payload", "error", err, "bytes", len(raw))
		},
		OnExchange: func(ctx context.Context, request, response []byte) {
			l.DebugContext(ctx, "XML-RPC exchange", "request_bytes", len(request), "response_bytes", len(response))
		},
	}
}
