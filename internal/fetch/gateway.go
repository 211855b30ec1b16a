// Package fetch implements the cached fetch gateway: a TTL cache in front of a
// single timeout-bounded upstream GET.
//
// The gateway returns fresh or cached upstream JSON, or a typed *Error. It
// never substitutes placeholder data; that is the caller's policy.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"playergate/internal/cache"
	"playergate/internal/metrics"
)

// Request describes one fetch. An empty CacheKey bypasses the cache in both
// directions; a zero TTL means DefaultTTL.
type Request struct {
	URL      string
	CacheKey string
	TTL      time.Duration
}

// Fetcher is what callers depend on.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (json.RawMessage, error)
}

type Gateway struct {
	store      cache.Store
	httpClient *http.Client
	logger     *zap.Logger
	timeout    time.Duration
	coalesce   bool
	group      singleflight.Group
}

var _ Fetcher = (*Gateway)(nil)

// New creates a gateway over store.
func New(store cache.Store, opts Options, logger *zap.Logger) *Gateway {
	opts = opts.WithDefaults()

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewTransport(opts)}
	}

	return &Gateway{
		store:      store,
		httpClient: httpClient,
		logger:     logger.Named("fetch"),
		timeout:    Timeout,
		coalesce:   opts.Coalesce,
	}
}

// Fetch returns the JSON document at req.URL, from cache when a fresh entry
// exists under req.CacheKey. Failures are *Error values and never touch the
// cache.
func (g *Gateway) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.CacheKey == "" {
		return g.fetchRemote(ctx, req.URL)
	}

	if val, ok := g.lookup(ctx, req.CacheKey); ok {
		return val, nil
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if !g.coalesce {
		return g.fetchAndStore(ctx, req.URL, req.CacheKey, ttl)
	}

	return g.fetchShared(ctx, req.URL, req.CacheKey, ttl)
}

// fetchShared joins an in-flight fetch for key. The shared call is detached
// from any one caller's cancellation; each caller still stops waiting when its
// own ctx is done.
func (g *Gateway) fetchShared(ctx context.Context, url, key string, ttl time.Duration) (json.RawMessage, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		return g.fetchAndStore(detached, url, key, ttl)
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		return nil, &Error{Kind: classifyTransportError(err), URL: url, Err: err}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		body := res.Val.(json.RawMessage)
		if res.Shared {
			body = append(json.RawMessage(nil), body...)
		}
		return body, nil
	}
}

// lookup treats store errors as misses.
func (g *Gateway) lookup(ctx context.Context, key string) (json.RawMessage, bool) {
	val, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn("cache lookup failed, treating as miss",
			zap.String("cache_key", key),
			zap.Error(err),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return json.RawMessage(val), true
}

func (g *Gateway) fetchAndStore(ctx context.Context, url, key string, ttl time.Duration) (json.RawMessage, error) {
	body, err := g.fetchRemote(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := g.store.Set(ctx, key, body, ttl); err != nil {
		g.logger.Warn("cache store failed",
			zap.String("cache_key", key),
			zap.Error(err),
		)
	}

	return body, nil
}

// fetchRemote performs exactly one GET bounded by the gateway timeout.
func (g *Gateway) fetchRemote(parentCtx context.Context, url string) (json.RawMessage, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(parentCtx, g.timeout)
	defer cancel()

	body, err := g.do(ctx, url)
	duration := time.Since(start)

	if err != nil {
		fe := err.(*Error)
		metrics.ObserveUpstream(fe.Kind.String(), duration)
		g.logger.Warn("upstream request failed",
			zap.String("url", url),
			zap.String("kind", fe.Kind.String()),
			zap.Int("status", fe.Status),
			zap.Duration("duration", duration),
			zap.Error(fe.Err),
		)
		return nil, err
	}

	metrics.ObserveUpstream("ok", duration)
	g.logger.Debug("upstream request completed",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", duration),
	)
	return body, nil
}

// do always returns an *Error on failure.
func (g *Gateway) do(ctx context.Context, url string) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("User-Agent", UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &Error{
			Kind:   KindUpstreamStatus,
			Status: resp.StatusCode,
			URL:    url,
			Err:    fmt.Errorf("upstream %d: %s", resp.StatusCode, truncate(string(snippet), 200)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		kind := KindMalformed
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &Error{Kind: kind, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodySize {
		return nil, &Error{Kind: KindMalformed, URL: url, Err: fmt.Errorf("body exceeds %d bytes", maxBodySize)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &Error{Kind: KindMalformed, URL: url, Err: fmt.Errorf("invalid JSON: %s", truncate(string(body), 200))}
	}

	return json.RawMessage(body), nil
}

// Close releases idle upstream connections.
func (g *Gateway) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}

// Decode fetches req and unmarshals the document into T.
func Decode[T any](ctx context.Context, f Fetcher, req Request) (T, error) {
	var out T
	raw, err := f.Fetch(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Kind: KindMalformed, URL: req.URL, Err: fmt.Errorf("decode: %w", err)}
	}
	return out, nil
}
