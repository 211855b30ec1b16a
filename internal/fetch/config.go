package fetch

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

const (
	// Timeout bounds every outbound call, including reading the body.
	Timeout = 10 * time.Second
	// DefaultTTL applies when a Request carries no TTL.
	DefaultTTL = 300 * time.Second
	// UserAgent identifies this service to the upstream.
	UserAgent = "playergate/1.0"

	maxBodySize = 5 << 20 // 5 MiB
)

type Options struct {
	// Coalesce collapses concurrent misses for one cache key into a single
	// outbound call. Off by default: concurrent misses race, last write wins.
	Coalesce bool

	// Optional connection pool settings
	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Resolver caches DNS lookups for the default transport. Nil dials directly.
	Resolver *dnscache.Resolver

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// WithDefaults returns a copy of Options with defaults applied.
func (o Options) WithDefaults() Options {
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 100
	}
	if o.MaxIdleConnsPerHost <= 0 {
		o.MaxIdleConnsPerHost = 100
	}
	return o
}

// NewTransport creates a pooled transport. When resolver is non-nil, dials go
// through cached DNS lookups.
func NewTransport(opts Options) *http.Transport {
	opts = opts.WithDefaults()

	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if resolver := opts.Resolver; resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var lastErr error = &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		}
	}

	return t
}
