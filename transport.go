package xmlrpc

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"
)

// Transport opens the byte stream a single request/response exchange runs over.
//
// Dial must honor ctx for the connect phase. When secure is true the returned
// connection must be encrypted.
type Transport interface {
	Dial(ctx context.Context, addr string, secure bool) (net.Conn, error)
}

// NetTransport is the default [Transport], dialing TCP and TLS connections.
type NetTransport struct {
	// TLSConfig is used for secure connections. nil means the default configuration.
	TLSConfig *tls.Config
}

// Dial implements [Transport].
func (t *NetTransport) Dial(ctx context.Context, addr string, secure bool) (net.Conn, error) {
	if secure {
		return (&tls.Dialer{Config: t.TLSConfig}).DialContext(ctx, "tcp", addr)
	}

	return new(net.Dialer).DialContext(ctx, "tcp", addr)
}

// exchange writes request to conn and reads the reply until the peer closes.
//
// ioTimeout, when positive, bounds the write and read phases together.
// Cancelling ctx interrupts a blocked write or read.
func exchange(ctx context.Context, conn net.Conn, request []byte, ioTimeout time.Duration) ([]byte, error) {
	deadline := time.Time{}
	if ioTimeout > 0 {
		deadline = time.Now().Add(ioTimeout)
	}

	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	after := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer after()

	if _, err := conn.Write(request); err != nil {
		return nil, errors.Join(&phaseError{phase: "Write error", err: err}, ctx.Err())
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		return nil, errors.Join(&phaseError{phase: "Read error", err: err}, ctx.Err())
	}

	return raw, nil
}

type phaseError struct {
	err   error
	phase string
}

func (e *phaseError) Error() string {
	return e.phase + ": " + e.err.Error()
}

func (e *phaseError) Unwrap() error {
	return e.err
}
