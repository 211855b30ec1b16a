package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"playergate/internal/cache"
	"playergate/internal/cache/mock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// upstream is a configurable httptest server that counts calls.
type upstream struct {
	srv    *httptest.Server
	calls  atomic.Int32
	mu     sync.Mutex
	status int
	body   string
	delay  time.Duration
	lastUA string
}

func newUpstream(t *testing.T, body string) *upstream {
	t.Helper()
	u := &upstream{status: http.StatusOK, body: body}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.mu.Lock()
		status, respBody, delay := u.status, u.body, u.delay
		u.lastUA = r.Header.Get("User-Agent")
		u.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) respond(status int, body string) {
	u.mu.Lock()
	u.status, u.body = status, body
	u.mu.Unlock()
}

func newTestGateway(t *testing.T) (*Gateway, *cache.Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := cache.NewMemory(time.Hour, cache.WithClock(clock.Now))
	t.Cleanup(func() { store.Close() })
	g := New(store, Options{}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = g.Close() })
	return g, store, clock
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	g, _, _ := newTestGateway(t)
	up := newUpstream(t, `{"name":"A"}`)
	other := newUpstream(t, `{"name":"other"}`)
	ctx := context.Background()

	first, err := g.Fetch(ctx, Request{URL: up.srv.URL + "/x", CacheKey: "k"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A"}`, string(first))

	second, err := g.Fetch(ctx, Request{URL: other.srv.URL + "/y", CacheKey: "k"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A"}`, string(second))

	assert.EqualValues(t, 1, up.calls.Load())
	assert.EqualValues(t, 0, other.calls.Load(), "a cache hit must not touch the network")
}

func TestFetch_SendsIdentifyingHeader(t *testing.T) {
	g, _, _ := newTestGateway(t)
	up := newUpstream(t, `{}`)

	_, err := g.Fetch(context.Background(), Request{URL: up.srv.URL})
	require.NoError(t, err)

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, UserAgent, up.lastUA)
}

func TestFetch_ExpiryRefetches(t *testing.T) {
	g, _, clock := newTestGateway(t)
	up := newUpstream(t, `{"v":1}`)
	ctx := context.Background()
	req := Request{URL: up.srv.URL, CacheKey: "k", TTL: 10 * time.Second}

	_, err := g.Fetch(ctx, req)
	require.NoError(t, err)

	clock.Advance(10*time.Second + time.Millisecond)
	up.respond(http.StatusOK, `{"v":2}`)

	got, err := g.Fetch(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
	assert.EqualValues(t, 2, up.calls.Load())
}

func TestFetch_NoCrossKeyLeakage(t *testing.T) {
	g, _, _ := newTestGateway(t)
	a := newUpstream(t, `{"who":"a"}`)
	b := newUpstream(t, `{"who":"b"}`)
	ctx := context.Background()

	gotA, err := g.Fetch(ctx, Request{URL: a.srv.URL, CacheKey: "a"})
	require.NoError(t, err)
	gotB, err := g.Fetch(ctx, Request{URL: b.srv.URL, CacheKey: "b"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"who":"a"}`, string(gotA))
	assert.JSONEq(t, `{"who":"b"}`, string(gotB))
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestFetch_NoKeyBypassesCache(t *testing.T) {
	g, store, _ := newTestGateway(t)
	up := newUpstream(t, `{"count":3}`)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.Fetch(ctx, Request{URL: up.srv.URL})
		require.NoError(t, err)
	}

	assert.EqualValues(t, 2, up.calls.Load())
	assert.Equal(t, 0, store.Len(), "uncached fetches must not write the table")
}

func TestFetch_FailuresDoNotTouchCache(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(g *Gateway, up *upstream)
		kind   Kind
		target error
		status int
		msg    string
	}{
		{
			name:   "server error",
			setup:  func(_ *Gateway, up *upstream) { up.respond(http.StatusInternalServerError, `{"errors":[]}`) },
			kind:   KindUpstreamStatus,
			target: ErrUpstreamStatus,
			status: http.StatusInternalServerError,
		},
		{
			name:   "malformed body",
			setup:  func(_ *Gateway, up *upstream) { up.respond(http.StatusOK, `{"name":`) },
			kind:   KindMalformed,
			target: ErrMalformed,
		},
		{
			name:   "empty body",
			setup:  func(_ *Gateway, up *upstream) { up.respond(http.StatusOK, ``) },
			kind:   KindMalformed,
			target: ErrMalformed,
		},
		{
			name: "oversized body",
			setup: func(_ *Gateway, up *upstream) {
				up.respond(http.StatusOK, `"`+strings.Repeat("a", maxBodySize)+`"`)
			},
			kind:   KindMalformed,
			target: ErrMalformed,
			msg:    "body exceeds",
		},
		{
			name: "timeout",
			setup: func(g *Gateway, up *upstream) {
				g.timeout = 50 * time.Millisecond
				up.mu.Lock()
				up.delay = time.Second
				up.mu.Unlock()
			},
			kind:   KindTimeout,
			target: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, store, _ := newTestGateway(t)
			up := newUpstream(t, `{}`)
			tt.setup(g, up)

			_, err := g.Fetch(context.Background(), Request{URL: up.srv.URL, CacheKey: "k"})
			require.Error(t, err)

			kind, ok := KindOf(err)
			require.True(t, ok, "expected *fetch.Error, got %T", err)
			assert.Equal(t, tt.kind, kind)
			assert.True(t, errors.Is(err, tt.target))
			assert.Equal(t, tt.status, StatusOf(err))
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}

			_, hit, _ := store.Get(context.Background(), "k")
			assert.False(t, hit, "failed fetch must not create an entry")
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	g, _, _ := newTestGateway(t)
	up := newUpstream(t, `{}`)
	url := up.srv.URL
	up.srv.Close()

	_, err := g.Fetch(context.Background(), Request{URL: url, CacheKey: "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFetch_CallerCancellation(t *testing.T) {
	g, _, _ := newTestGateway(t)
	up := newUpstream(t, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Fetch(ctx, Request{URL: up.srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_PlayerScenario(t *testing.T) {
	g, _, clock := newTestGateway(t)
	up := newUpstream(t, `{"name":"A"}`)
	ctx := context.Background()
	req := Request{URL: up.srv.URL + "/x", CacheKey: "player_1", TTL: 300 * time.Second}

	got, err := g.Fetch(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A"}`, string(got))

	up.respond(http.StatusOK, `{"name":"B"}`)

	clock.Advance(100 * time.Second)
	got, err = g.Fetch(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A"}`, string(got), "still inside ttl at t=100s")

	clock.Advance(201 * time.Second)
	got, err = g.Fetch(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"B"}`, string(got), "refetched at t=301s")

	got, err = g.Fetch(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"B"}`, string(got), "stored entry was updated")
	assert.EqualValues(t, 2, up.calls.Load())
}

func TestFetch_ServiceUnavailableScenario(t *testing.T) {
	g, store, _ := newTestGateway(t)
	up := newUpstream(t, `{}`)
	up.respond(http.StatusServiceUnavailable, `{"errors":[{"message":"down"}]}`)

	_, err := g.Fetch(context.Background(), Request{URL: up.srv.URL, CacheKey: "player_1"})
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindUpstreamStatus, fe.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, fe.Status)
	assert.Equal(t, 0, store.Len())
}

func TestFetch_DefaultTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)
	up := newUpstream(t, `{"ok":true}`)

	store.EXPECT().Get(gomock.Any(), "k").Return(nil, false, nil)
	store.EXPECT().Set(gomock.Any(), "k", gomock.Any(), DefaultTTL).Return(nil)

	g := New(store, Options{}, zaptest.NewLogger(t))
	_, err := g.Fetch(context.Background(), Request{URL: up.srv.URL, CacheKey: "k"})
	require.NoError(t, err)
}

func TestFetch_FailureNeverCallsSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)
	up := newUpstream(t, `{}`)
	up.respond(http.StatusInternalServerError, "boom")

	store.EXPECT().Get(gomock.Any(), "k").Return(nil, false, nil)
	store.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	g := New(store, Options{}, zaptest.NewLogger(t))
	_, err := g.Fetch(context.Background(), Request{URL: up.srv.URL, CacheKey: "k"})
	require.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestFetch_StoreErrorsAreNotFetchErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)
	up := newUpstream(t, `{"ok":true}`)

	store.EXPECT().Get(gomock.Any(), "k").Return(nil, false, errors.New("redis down"))
	store.EXPECT().Set(gomock.Any(), "k", gomock.Any(), time.Minute).Return(errors.New("redis down"))

	g := New(store, Options{}, zaptest.NewLogger(t))
	got, err := g.Fetch(context.Background(), Request{URL: up.srv.URL, CacheKey: "k", TTL: time.Minute})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))
	assert.EqualValues(t, 1, up.calls.Load())
}

func TestFetch_CoalesceSharesOneCall(t *testing.T) {
	store := cache.NewMemory(time.Hour)
	t.Cleanup(func() { store.Close() })
	g := New(store, Options{Coalesce: true}, zaptest.NewLogger(t))

	up := newUpstream(t, `{"shared":true}`)
	up.mu.Lock()
	up.delay = 100 * time.Millisecond
	up.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := g.Fetch(context.Background(), Request{URL: up.srv.URL, CacheKey: "k"})
			assert.NoError(t, err)
			assert.JSONEq(t, `{"shared":true}`, string(got))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, up.calls.Load())
}

func TestFetch_CoalesceSurvivesOneCallerCancelling(t *testing.T) {
	store := cache.NewMemory(time.Hour)
	t.Cleanup(func() { store.Close() })
	g := New(store, Options{Coalesce: true}, zaptest.NewLogger(t))

	up := newUpstream(t, `{"shared":true}`)
	up.mu.Lock()
	up.delay = 300 * time.Millisecond
	up.mu.Unlock()
	req := Request{URL: up.srv.URL, CacheKey: "k"}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := g.Fetch(ctxA, req)
		errA <- err
	}()

	require.Eventually(t, func() bool { return up.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		body []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		body, err := g.Fetch(context.Background(), req)
		resB <- result{body, err}
	}()

	time.Sleep(30 * time.Millisecond)
	start := time.Now()
	cancelA()

	err := <-errA
	assert.Less(t, time.Since(start), 200*time.Millisecond, "cancelled caller must stop waiting")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, context.Canceled)

	b := <-resB
	require.NoError(t, b.err)
	assert.JSONEq(t, `{"shared":true}`, string(b.body))
	assert.EqualValues(t, 1, up.calls.Load())

	_, hit, _ := store.Get(context.Background(), "k")
	assert.True(t, hit, "detached fetch still populates the cache")
}

func TestDecode(t *testing.T) {
	g, _, _ := newTestGateway(t)
	up := newUpstream(t, `{"count":12}`)

	got, err := Decode[struct {
		Count int `json:"count"`
	}](context.Background(), g, Request{URL: up.srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 12, got.Count)

	up.respond(http.StatusOK, `["not","an","object"]`)
	_, err = Decode[struct {
		Count int `json:"count"`
	}](context.Background(), g, Request{URL: up.srv.URL})
	assert.ErrorIs(t, err, ErrMalformed)
}
