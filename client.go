package xmlrpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Go XML-RPC client"
	// DefaultProxyPort is used by [WithProxy] when no port is given.
	DefaultProxyPort = 8080
)

// Client sends XML-RPC method calls to a single server, optionally through an HTTP proxy.
//
// Every call opens its own connection, performs exactly one HTTP/1.0
// request/response exchange and closes the connection. Client holds no
// per-call state and is goroutine-safe once constructed.
type Client struct {
	transport      Transport
	callbacks      Callbacks
	scheme         string
	host           string
	path           string
	user           string
	password       string
	userAgent      string
	proxyHost      string
	proxyUser      string
	proxyPass      string
	port           int
	proxyPort      int
	connectTimeout time.Duration
	ioTimeout      time.Duration
	proxySecure    bool
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithCredentials sends an "Authorization: Basic" header with every request.
func WithCredentials(user, password string) ClientOption {
	return func(c *Client) {
		c.user, c.password = user, password
	}
}

// WithProxy routes requests through the HTTP proxy at proxy:port.
// A "https://" prefix on proxy selects TLS for the proxy hop; a port of 0
// means [DefaultProxyPort].
func WithProxy(proxy string, port int) ClientOption {
	return func(c *Client) {
		c.proxyHost, c.proxySecure = splitScheme(proxy)
		c.proxyPort = port

		if port <= 0 {
			c.proxyPort = DefaultProxyPort
		}
	}
}

// WithProxyCredentials sends a "Proxy-Authorization: Basic" header when a proxy is used.
func WithProxyCredentials(user, password string) ClientOption {
	return func(c *Client) {
		c.proxyUser, c.proxyPass = user, password
	}
}

// WithTransport replaces the [NetTransport] used to open connections.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithTLSConfig uses cfg for TLS connections of the default [NetTransport].
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.transport = &NetTransport{TLSConfig: cfg}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sends the [DefaultCallbacks] output to l.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.callbacks = DefaultCallbacks(l)
	}
}

// WithCallbacks replaces the client callbacks.
func WithCallbacks(cb Callbacks) ClientOption {
	return func(c *Client) {
		c.callbacks = cb
	}
}

// WithConnectTimeout sets the connect timeout used by [Client.Call].
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithIOTimeout bounds the write and read phases of every exchange.
// Zero, the default, means no limit beyond the context deadline.
func WithIOTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.ioTimeout = d
	}
}

// NewClient returns a [*Client] for the server at rawURL, for example
// "https://rpc.example.com/RPC2".
//
// The scheme must be http or https. User information in the URL is used as
// Basic credentials.
//
// Returns [ErrUnknownScheme] for other schemes, or the URL parsing error.
func NewClient(rawURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}

	port := 0

	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("xmlrpc: bad port %q: %w", p, err)
		}
	}

	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	var userOpts []ClientOption

	if u.User != nil {
		pw, _ := u.User.Password()
		userOpts = append(userOpts, WithCredentials(u.User.Username(), pw))
	}

	return newClient(path, u.Scheme+"://"+u.Hostname(), port, append(userOpts, opts...)...), nil
}

// NewClientWithPath returns a [*Client] posting to path on server:port.
//
// A "https://" prefix on server selects TLS, "http://" or no prefix plain TCP.
// A port of 0 means 80, or 443 for TLS.
func NewClientWithPath(path, server string, port int, opts ...ClientOption) *Client {
	return newClient(path, server, port, opts...)
}

func newClient(path, server string, port int, opts ...ClientOption) *Client {
	host, secure := splitScheme(server)

	c := &Client{
		transport: new(NetTransport),
		callbacks: DefaultCallbacks(slog.Default()),
		scheme:    "http",
		host:      host,
		path:      path,
		port:      port,
		userAgent: DefaultUserAgent,
	}

	if secure {
		c.scheme = "https"
	}

	if c.port <= 0 {
		c.port = 80
		if secure {
			c.port = 443
		}
	}

	if c.path == "" {
		c.path = "/"
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// splitScheme strips an http:// or https:// prefix, reporting whether it asked for TLS.
func splitScheme(server string) (host string, secure bool) {
	if rest, ok := strings.CutPrefix(server, "https://"); ok {
		return rest, true
	}

	return strings.TrimPrefix(server, "http://"), false
}

// Send performs one call: it serializes msg, connects (bounded by
// connectTimeout when positive), writes the request, reads the reply to the
// end of the stream and decodes it.
//
// Send never returns nil. Connection problems yield a [FaultConnectionFailed]
// response, a non-200 status a [FaultHTTPError] response and an undecodable
// body a [FaultInvalidReturn] response; a fault sent by the server is returned
// as is. The connection is closed on every path.
//
// Example:
//
//	msg := xmlrpc.NewMessage("system.listMethods")
//	resp := client.Send(ctx, msg, 5*time.Second)
//	if err := resp.Err(); err != nil {
//	    log.Printf("call failed: %v", err)
//	}
func (c *Client) Send(ctx context.Context, msg *Message, connectTimeout time.Duration) *Response {
	request := buildRequest(c.requestLine(), msg.Payload())

	endpoint, secure := c.endpoint()

	dialCtx := ctx

	if connectTimeout > 0 {
		var stop context.CancelFunc

		dialCtx, stop = context.WithTimeout(ctx, connectTimeout)
		defer stop()
	}

	conn, err := c.transport.Dial(dialCtx, endpoint, secure)
	if err != nil {
		c.onConnectError(ctx, endpoint, err)

		resp := NewFaultResponse(FaultConnectionFailed.Code, c.connectFailure(endpoint)+": "+err.Error())
		resp.unsent = true

		return resp
	}

	defer conn.Close()

	raw, err := exchange(ctx, conn, request, c.ioTimeout)
	if err != nil {
		c.onConnectError(ctx, endpoint, err)

		return NewFaultResponse(FaultConnectionFailed.Code, err.Error())
	}

	if c.callbacks.OnExchange != nil {
		c.callbacks.OnExchange(ctx, request, raw)
	}

	resp, badStatus, err := parseHTTPResponse(raw)

	switch {
	case badStatus != "" && c.callbacks.OnHTTPError != nil:
		c.callbacks.OnHTTPError(ctx, badStatus)
	case err != nil && c.callbacks.OnDecodingError != nil:
		c.callbacks.OnDecodingError(ctx, raw, err)
	}

	return resp
}

// Call encodes args with [FromNative], sends them as the parameters of method
// and returns the response, see [Client.Send]. The connect timeout is the one
// set with [WithConnectTimeout].
//
// An error is only returned when an argument cannot be encoded.
func (c *Client) Call(ctx context.Context, method string, args ...any) (*Response, error) {
	msg, err := newNativeMessage(method, args)
	if err != nil {
		return nil, err
	}

	return c.Send(ctx, msg, c.connectTimeout), nil
}

func newNativeMessage(method string, args []any) (*Message, error) {
	msg := NewMessage(method)

	for i, a := range args {
		v, err := FromNative(a)
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: param %d: %w", i, err)
		}

		msg.AddParam(v)
	}

	return msg, nil
}

func (c *Client) onConnectError(ctx context.Context, endpoint string, err error) {
	if c.callbacks.OnConnectError != nil {
		c.callbacks.OnConnectError(ctx, endpoint, err)
	}
}

func (c *Client) proxied() bool {
	return c.proxyHost != ""
}

// endpoint returns the address to dial and whether the hop is encrypted.
func (c *Client) endpoint() (string, bool) {
	if c.proxied() {
		return net.JoinHostPort(c.proxyHost, strconv.Itoa(c.proxyPort)), c.proxySecure
	}

	return net.JoinHostPort(c.host, strconv.Itoa(c.port)), c.scheme == "https"
}

func (c *Client) connectFailure(endpoint string) string {
	if c.proxied() {
		return fmt.Sprintf("Connection to proxy server %s failed", endpoint)
	}

	return fmt.Sprintf("Connection to RPC server %s failed", endpoint)
}

func (c *Client) requestLine() requestLine {
	return requestLine{
		scheme:    c.scheme,
		host:      c.host,
		port:      c.port,
		path:      c.path,
		user:      c.user,
		password:  c.password,
		proxyUser: c.proxyUser,
		proxyPass: c.proxyPass,
		userAgent: c.userAgent,
		proxied:   c.proxied(),
	}
}

// clone returns an independent copy of c.
func (c *Client) clone() *Client {
	cp := *c

	return &cp
}
