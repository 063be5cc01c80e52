package xmlrpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config describes a client, as read from a TOML file by [LoadConfig].
//
// Example file:
//
//	url = "https://rpc.example.com/RPC2"
//	user = "alice"
//	password = "secret"
//	proxy = "proxy.internal"
//	proxy_port = 3128
//	connect_timeout = "5s"
//	io_timeout = "30s"
//	pool_size = 4
//	retries = 2
//	rate_limit = 20.0
//
// Retries counts the retries of a pooled call that could not connect; zero
// disables them. Missing keys keep their [DefaultConfig] values.
type Config struct {
	URL                string   `toml:"url"`
	User               string   `toml:"user"`
	Password           string   `toml:"password"`
	Proxy              string   `toml:"proxy"`
	ProxyUser          string   `toml:"proxy_user"`
	ProxyPassword      string   `toml:"proxy_password"`
	UserAgent          string   `toml:"user_agent"`
	ConnectTimeout     Duration `toml:"connect_timeout"`
	IOTimeout          Duration `toml:"io_timeout"`
	RateLimit          float64  `toml:"rate_limit"`
	ProxyPort          int      `toml:"proxy_port"`
	PoolSize           int      `toml:"pool_size"`
	Retries            int      `toml:"retries"`
	RateBurst          int      `toml:"rate_burst"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// Duration is a [time.Duration] read from a TOML string such as "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}

	d.Duration = v

	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the configuration applied for keys a file does not define.
func DefaultConfig() Config {
	return Config{
		UserAgent:      DefaultUserAgent,
		ConnectTimeout: Duration{time.Duration(DefaultPoolConnectTimeout) * time.Second},
		ProxyPort:      DefaultProxyPort,
		Retries:        1,
		RateBurst:      1,
	}
}

// LoadConfig reads a TOML client configuration from path. Keys the file does
// not define keep their [DefaultConfig] value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw Config

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("xmlrpc: load config (%s): %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("xmlrpc: load config (%s): unknown key %q", path, undecoded[0].String())
	}

	for _, key := range meta.Keys() {
		applyConfigKey(&cfg, &raw, key.String())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("xmlrpc: load config (%s): %w", path, err)
	}

	return cfg, nil
}

func applyConfigKey(cfg, raw *Config, key string) {
	switch key {
	case "url":
		cfg.URL = strings.TrimSpace(raw.URL)
	case "user":
		cfg.User = raw.User
	case "password":
		cfg.Password = raw.Password
	case "proxy":
		cfg.Proxy = strings.TrimSpace(raw.Proxy)
	case "proxy_port":
		cfg.ProxyPort = raw.ProxyPort
	case "proxy_user":
		cfg.ProxyUser = raw.ProxyUser
	case "proxy_password":
		cfg.ProxyPassword = raw.ProxyPassword
	case "user_agent":
		cfg.UserAgent = raw.UserAgent
	case "connect_timeout":
		cfg.ConnectTimeout = raw.ConnectTimeout
	case "io_timeout":
		cfg.IOTimeout = raw.IOTimeout
	case "pool_size":
		cfg.PoolSize = raw.PoolSize
	case "retries":
		cfg.Retries = raw.Retries
	case "rate_limit":
		cfg.RateLimit = raw.RateLimit
	case "rate_burst":
		cfg.RateBurst = raw.RateBurst
	case "insecure_skip_verify":
		cfg.InsecureSkipVerify = raw.InsecureSkipVerify
	}
}

// Validate checks that the configuration can build a client.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}

	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("%w: url %q", ErrUnknownScheme, c.URL)
	}

	if c.ProxyPort < 0 || c.ProxyPort > 65535 {
		return fmt.Errorf("proxy_port %d out of range", c.ProxyPort)
	}

	if c.PoolSize < 0 || c.Retries < 0 || c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("pool_size, retries, rate_limit and rate_burst must not be negative")
	}

	return nil
}

// Options returns the [ClientOption] list described by c.
func (c Config) Options() []ClientOption {
	opts := []ClientOption{
		WithConnectTimeout(c.ConnectTimeout.Duration),
		WithIOTimeout(c.IOTimeout.Duration),
	}

	if c.UserAgent != "" {
		opts = append(opts, WithUserAgent(c.UserAgent))
	}

	if c.User != "" {
		opts = append(opts, WithCredentials(c.User, c.Password))
	}

	if c.Proxy != "" {
		opts = append(opts, WithProxy(c.Proxy, c.ProxyPort))

		if c.ProxyUser != "" {
			opts = append(opts, WithProxyCredentials(c.ProxyUser, c.ProxyPassword))
		}
	}

	if c.InsecureSkipVerify {
		//nolint:gosec // Explicitly requested by configuration
		opts = append(opts, WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}

	return opts
}

// NewClient builds a [*Client] from c. extra options are applied last.
func (c Config) NewClient(extra ...ClientOption) (*Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return NewClient(c.URL, append(c.Options(), extra...)...)
}

// NewClientPool builds a [*ClientPool] whose clients are built from c.
func (c Config) NewClientPool(ctx context.Context, extra ...ClientOption) (*ClientPool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	retries := c.Retries
	if retries == 0 {
		retries = -1
	}

	return NewClientPool(ctx, ClientPoolConfig{
		NewClient:       func() (*Client, error) { return c.NewClient(extra...) },
		ConnectTimeout:  c.ConnectTimeout.Duration,
		Retries:         retries,
		RateLimit:       c.RateLimit,
		RateBurst:       c.RateBurst,
		MaxSize:         int32(min(c.PoolSize, 1<<16)), //nolint:gosec // bounded above
		AcquireOnCreate: true,
	})
}
