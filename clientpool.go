package xmlrpc

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/jackc/puddle/v2"
	"golang.org/x/time/rate"
)

const (
	// DefaultPoolConnectTimeout specifies the default connect timeout (30 seconds)
	// of each call made through a [ClientPool]. See [ClientPoolConfig.ConnectTimeout].
	DefaultPoolConnectTimeout = 30
	// DefaultPoolIdleTimeout specifies the default timeout (300 seconds or 5 minutes)
	// after which idle clients in the pool are released. See [ClientPoolConfig.IdleTimeout].
	DefaultPoolIdleTimeout = 300
	// DefaultPoolRetryBackoff is the base delay between retries, doubled on every attempt.
	DefaultPoolRetryBackoff = 100 * time.Millisecond
)

// ErrRetriesExceeded prefixes the fault message of the [FaultConnectionFailed]
// response returned by [ClientPool.Send] when every attempt failed to connect.
var ErrRetriesExceeded = errors.New("xmlrpc: retries exceeded")

// ClientPoolConfig holds configuration parameters for creating a [ClientPool].
type ClientPoolConfig struct {
	// NewClient builds the pooled clients. Each pooled client is an independent
	// instance, so concurrent calls never share state.
	NewClient func() (*Client, error)

	// IdleTimeout defines the maximum duration a client can remain idle in the pool
	// before being released. Defaults to [DefaultPoolIdleTimeout] seconds if zero.
	// A negative value disables idle release.
	IdleTimeout time.Duration

	// ConnectTimeout bounds the connect phase of every call.
	// Defaults to [DefaultPoolConnectTimeout] seconds if zero or negative.
	ConnectTimeout time.Duration

	// RetryBackoff is the delay before the first retry, doubled for each further retry.
	// Defaults to [DefaultPoolRetryBackoff] if zero. A negative value retries immediately.
	RetryBackoff time.Duration

	// Retries specifies how many times a call is retried when the client could
	// not connect to the server. A call that failed after the request was written
	// is never retried, nor is any other fault, since the request may have been executed.
	// Defaults to 1 (one initial attempt + one retry) if zero. A negative value
	// disables retries.
	Retries int

	// RateLimit caps the number of calls per second started through the pool.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the number of calls allowed in a burst when RateLimit is set.
	// Defaults to 1.
	RateBurst int

	// MaxSize defines the maximum number of calls in flight at once.
	// If zero or negative, it defaults to `min(runtime.NumCPU(), runtime.GOMAXPROCS(-1)) * 2`.
	// Calls made when the pool is full block until a client becomes available
	// or the context is cancelled.
	MaxSize int32

	// AcquireOnCreate, if true, builds one client when the pool is created so
	// that configuration errors surface from [NewClientPool].
	AcquireOnCreate bool
}

// ClientPool runs calls concurrently over a bounded set of independent [*Client]
// instances. It retries calls that could not reach the server and can rate
// limit the calls it starts.
//
// ClientPool is goroutine-safe.
type ClientPool struct {
	pool           *puddle.Pool[*Client] // Underlying pool from github.com/jackc/puddle/v2
	limiter        *rate.Limiter         // nil when not rate limited
	idle           *time.Timer           // Timer for releasing idle clients
	connectTimeout time.Duration
	backoff        time.Duration
	retries        int  // Number of allowed attempts (initial + retries)
	closed         bool // Flag indicating if Close() has been called
	mu             sync.Mutex
}

// NewClientPool creates a new [ClientPool].
//
// Example:
//
//	pool, err := xmlrpc.NewClientPool(ctx, xmlrpc.ClientPoolConfig{
//	    NewClient: func() (*xmlrpc.Client, error) {
//	        return xmlrpc.NewClient("http://localhost:8080/RPC2")
//	    },
//	    MaxSize:   8,
//	    Retries:   2,
//	    RateLimit: 50,
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create client pool: %v", err)
//	}
//	defer pool.Close()
func NewClientPool(nctx context.Context, config ClientPoolConfig) (*ClientPool, error) {
	if config.NewClient == nil {
		return nil, errors.New("xmlrpc: ClientPoolConfig.NewClient is required")
	}

	if config.IdleTimeout == 0 {
		config.IdleTimeout = time.Duration(DefaultPoolIdleTimeout) * time.Second
	}

	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = time.Duration(DefaultPoolConnectTimeout) * time.Second
	}

	if config.RetryBackoff == 0 {
		config.RetryBackoff = DefaultPoolRetryBackoff
	}

	if config.MaxSize <= 0 {
		//nolint:gosec,mnd //How many cpus do you think we have? Puddle requires int32.
		config.MaxSize = int32(min(runtime.NumCPU(), runtime.GOMAXPROCS(-1)) * 2)
	}

	pool, err := puddle.NewPool(&puddle.Config[*Client]{
		Constructor: func(context.Context) (*Client, error) {
			c, err := config.NewClient()
			if err != nil {
				return nil, err
			}

			return c.clone(), nil
		},
		Destructor: func(*Client) {},
		MaxSize:    config.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	if config.AcquireOnCreate {
		res, err := pool.Acquire(nctx)
		if err != nil {
			defer pool.Close()
			return nil, err
		}

		defer res.Release()
	}

	cpool := &ClientPool{
		pool:           pool,
		connectTimeout: config.ConnectTimeout,
		backoff:        max(config.RetryBackoff, 0),
		retries:        attempts(config.Retries),
	}

	if config.RateLimit > 0 {
		cpool.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(config.RateBurst, 1))
	}

	if config.IdleTimeout > 0 {
		cpool.idle = time.AfterFunc(config.IdleTimeout, func() { cpool.releaseIdle(config.IdleTimeout) })
	}

	return cpool, nil
}

// attempts converts [ClientPoolConfig.Retries] into the number of tries per call.
func attempts(retries int) int {
	switch {
	case retries < 0:
		return 1
	case retries == 0:
		return 2
	default:
		return retries + 1
	}
}

// releaseIdle destroys clients idle for longer than ttl and rearms the timer
// for the next one to expire.
func (cp *ClientPool) releaseIdle(ttl time.Duration) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.closed {
		return
	}

	next := ttl

	for _, res := range cp.pool.AcquireAllIdle() {
		if idle := res.IdleDuration(); idle < ttl {
			next = min(next, ttl-idle)
			res.ReleaseUnused()

			continue
		}

		res.Destroy()
	}

	cp.idle.Reset(next)
}

// Close shuts down the pool, waiting for calls in flight to finish.
// It is safe to call Close multiple times.
func (cp *ClientPool) Close() {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return
	}

	cp.closed = true

	if cp.idle != nil {
		cp.idle.Stop()
	}
	cp.mu.Unlock()

	cp.pool.Close()
}

// Stat returns the number of clients currently in use and idle.
func (cp *ClientPool) Stat() (acquired, idle int32) {
	s := cp.pool.Stat()

	return s.AcquiredResources(), s.IdleResources()
}

// Send performs msg on a pooled client, see [Client.Send].
//
// A call that could not connect is retried up to the configured number of
// retries, waiting [ClientPoolConfig.RetryBackoff] (doubled each time) in between.
// When all attempts fail, the returned response is the last connection fault
// with its message noting that retries were exceeded. A [FaultConnectionFailed]
// raised while writing the request or reading the reply is returned as is.
//
// An error is returned only when no client could be acquired, the rate limiter
// wait failed, or ctx ended.
func (cp *ClientPool) Send(ctx context.Context, msg *Message) (*Response, error) {
	var resp *Response

	delay := cp.backoff

	for attempt := range cp.retries {
		if attempt > 0 && delay > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}

			delay *= 2
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if cp.limiter != nil {
			if err := cp.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		res, err := cp.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		resp = res.Value().Send(ctx, msg, cp.connectTimeout)
		res.Release()

		if !resp.unsent {
			return resp, nil
		}
	}

	// FaultString is already escaped
	return &Response{fault: Fault{Code: resp.FaultCode(), Message: ErrRetriesExceeded.Error() + ": " + resp.FaultString()}}, nil
}

// Call encodes args with [FromNative] and sends them as the parameters of
// method, see [ClientPool.Send].
func (cp *ClientPool) Call(ctx context.Context, method string, args ...any) (*Response, error) {
	msg, err := newNativeMessage(method, args)
	if err != nil {
		return nil, err
	}

	return cp.Send(ctx, msg)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
