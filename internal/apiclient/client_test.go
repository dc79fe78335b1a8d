package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joshuarp/branchdesk/internal/shared/connectivity"
	"github.com/joshuarp/branchdesk/internal/shared/events"
	"github.com/joshuarp/branchdesk/internal/shared/i18n"
	sharedlog "github.com/joshuarp/branchdesk/internal/shared/log"
	"github.com/joshuarp/branchdesk/internal/shared/respcache"
	"github.com/joshuarp/branchdesk/internal/shared/securestore"
	"github.com/joshuarp/branchdesk/internal/shared/uid"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// scriptedProbe returns statuses in order, repeating the last one.
type scriptedProbe struct {
	mu       sync.Mutex
	statuses []bool
	calls    int
}

func (p *scriptedProbe) FetchStatus(context.Context) connectivity.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	online := p.statuses[len(p.statuses)-1]
	if p.calls < len(p.statuses) {
		online = p.statuses[p.calls]
	}
	p.calls++
	return connectivity.Status{IsConnected: true, IsInternetReachable: online}
}

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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type ClientSuite struct {
	suite.Suite

	server   *httptest.Server
	handler  http.HandlerFunc
	hits     atomic.Int32
	lastReq  atomic.Pointer[http.Request]
	store    *securestore.Memory
	bus      events.Bus
	probe    *scriptedProbe
	sleeps   *sleepRecorder
	clock    *fakeClock
	cache    *respcache.Memory
	logs     *bytes.Buffer
	attempts []Attempt
	toasts   []events.Toast
	expired  int
	client   *Client
}

func (s *ClientSuite) SetupTest() {
	s.hits.Store(0)
	s.lastReq.Store(nil)
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.lastReq.Store(r.Clone(context.Background()))
		s.handler(w, r)
	}))
	s.T().Cleanup(s.server.Close)

	s.store = securestore.NewMemory()
	s.bus = events.NewBus()
	s.probe = &scriptedProbe{statuses: []bool{true}}
	s.sleeps = &sleepRecorder{}
	s.clock = &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s.cache = respcache.NewMemory(respcache.DefaultTTL, s.clock.Now)
	s.logs = &bytes.Buffer{}
	s.attempts = nil
	s.toasts = nil
	s.expired = 0

	s.bus.Subscribe(events.TopicShowToast, func(payload any) {
		s.toasts = append(s.toasts, payload.(events.Toast))
	})
	s.bus.Subscribe(events.TopicSessionExpired, func(any) { s.expired++ })

	s.client = s.newClient(Options{})
}

func (s *ClientSuite) newClient(overrides Options) *Client {
	dict, err := i18n.Load("en")
	require.NoError(s.T(), err)

	logger := sharedlog.NewJSONLoggerTo(s.logs, "debug")
	classifier, err := NewClassifier(ClassifierOptions{Translator: dict})
	require.NoError(s.T(), err)

	opts := Options{
		BaseURL:     s.server.URL + "/api/v1/admin",
		Timeout:     overrides.Timeout,
		Retry:       overrides.Retry,
		Credentials: s.store,
		Probe:       s.probe,
		Cache:       s.cache,
		Bus:         s.bus,
		Classifier:  classifier,
		Notifier:    NewNotifier(NotifierOptions{Logger: logger, Bus: s.bus, Translator: dict}),
		RequestIDs:  uid.NewUUIDv7(),
		Logger:      logger,
		Sleep:       s.sleeps.Sleep,
		OnAttempt:   func(a Attempt) { s.attempts = append(s.attempts, a) },
	}

	client, err := New(opts)
	require.NoError(s.T(), err)
	return client
}

func (s *ClientSuite) status(code int, body string) {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

func (s *ClientSuite) failureLines() int {
	return strings.Count(s.logs.String(), `"msg":"api request failed"`)
}

func (s *ClientSuite) TestOfflineFailsFastWithoutTransport() {
	s.probe.statuses = []bool{false}

	_, err := s.client.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "orders"})

	ce, ok := AsClassified(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), KindNetworkError, ce.Kind)
	assert.True(s.T(), ce.ShowToUser)
	assert.Equal(s.T(), "No internet connection. Check your network and try again.", ce.Message)
	assert.ErrorIs(s.T(), err, ErrOffline)
	assert.Zero(s.T(), s.hits.Load())
	assert.Empty(s.T(), s.attempts)
	assert.Len(s.T(), s.toasts, 1)
	assert.Equal(s.T(), 1, s.failureLines())
}

func (s *ClientSuite) TestServerErrorRetriedOnceThenSuppressed() {
	s.status(http.StatusInternalServerError, `{"message":"boom"}`)

	err := s.client.Get(context.Background(), "orders", nil, nil)

	ce, ok := AsClassified(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), KindServerError, ce.Kind)
	assert.Equal(s.T(), http.StatusInternalServerError, ce.StatusCode)
	assert.False(s.T(), ce.ShowToUser)
	assert.EqualValues(s.T(), 2, s.hits.Load())
	assert.Equal(s.T(), []time.Duration{200 * time.Millisecond}, s.sleeps.Delays())
	assert.Empty(s.T(), s.toasts)
	assert.Equal(s.T(), 1, s.failureLines())
	assert.Contains(s.T(), s.logs.String(), `"msg":"api request retrying"`)
}

func (s *ClientSuite) TestTransientFailureRecovers() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		if s.hits.Load() == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}

	resp, err := s.client.Do(context.Background(), Request{Endpoint: "orders"})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, resp.Attempts)
	assert.False(s.T(), resp.Cached)
	assert.JSONEq(s.T(), `{"orders":[]}`, string(resp.Body))
	assert.Zero(s.T(), s.failureLines())
}

func (s *ClientSuite) TestUnauthorizedTearsDownSessionOnce() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.SetSecureData(ctx, securestore.TokenKey, "tok-1"))
	require.NoError(s.T(), s.store.SetSecureData(ctx, securestore.UserKey, `{"id":"staff-1"}`))
	s.status(http.StatusUnauthorized, `{"error":"invalid token"}`)

	err := s.client.Get(ctx, "orders", nil, nil)

	assert.Equal(s.T(), KindUnauthorized, KindOf(err))
	assert.False(s.T(), err.(*ClassifiedError).ShowToUser)
	assert.EqualValues(s.T(), 1, s.hits.Load())
	assert.Empty(s.T(), s.sleeps.Delays())
	assert.Equal(s.T(), 1, s.expired)

	_, ok, err := s.store.GetSecureData(ctx, securestore.TokenKey)
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
	_, ok, err = s.store.GetSecureData(ctx, securestore.UserKey)
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *ClientSuite) TestAnonymousUnauthorizedKeepsSession() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.SetSecureData(ctx, securestore.TokenKey, "tok-1"))
	s.status(http.StatusUnauthorized, `{"error":"invalid email or password"}`)

	_, err := s.client.Do(ctx, Request{Method: http.MethodPost, Endpoint: "auth/login", Body: map[string]string{"email": "a@b.c"}, Anonymous: true})

	assert.Equal(s.T(), KindUnauthorized, KindOf(err))
	assert.Zero(s.T(), s.expired)
	assert.Empty(s.T(), s.lastReq.Load().Header.Get("Authorization"))
	_, ok, _ := s.store.GetSecureData(ctx, securestore.TokenKey)
	assert.True(s.T(), ok)
}

func (s *ClientSuite) TestHeaders_TableDriven() {
	tests := []struct {
		name      string
		token     string
		wantAuth  string
		body      any
		wantCType string
	}{
		{name: "bearer attached when token stored", token: "tok-1", wantAuth: "Bearer tok-1"},
		{name: "no token is not an error", wantAuth: ""},
		{name: "json body", token: "tok-2", wantAuth: "Bearer tok-2", body: map[string]int{"prep_minutes": 10}, wantCType: "application/json"},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.SetupTest()
			if tc.token != "" {
				require.NoError(s.T(), s.store.SetSecureData(context.Background(), securestore.TokenKey, tc.token))
			}

			method := http.MethodGet
			if tc.body != nil {
				method = http.MethodPost
			}
			_, err := s.client.Do(context.Background(), Request{Method: method, Endpoint: "orders/1/accept", Body: tc.body})
			require.NoError(s.T(), err)

			req := s.lastReq.Load()
			require.NotNil(s.T(), req)
			assert.Equal(s.T(), tc.wantAuth, req.Header.Get("Authorization"))
			assert.Equal(s.T(), tc.wantCType, req.Header.Get("Content-Type"))
			assert.Equal(s.T(), "application/json", req.Header.Get("Accept"))
			assert.NotEmpty(s.T(), req.Header.Get(uid.Header))
			assert.Equal(s.T(), "/api/v1/admin/orders/1/accept", req.URL.Path)
		})
	}
}

func (s *ClientSuite) TestTimeoutEscalatesPerRetry() {
	s.handler = func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	s.client = s.newClient(Options{
		Timeout: 40 * time.Millisecond,
		Retry:   RetryPolicy{MaxRetries: 2, BaseDelay: 200 * time.Millisecond, TimeoutFactor: 1.5, OfflinePenalty: 5},
	})

	err := s.client.Get(context.Background(), "orders", nil, nil)

	assert.Equal(s.T(), KindRequestTimeout, KindOf(err))
	require.Len(s.T(), s.attempts, 3)
	assert.Equal(s.T(), 40*time.Millisecond, s.attempts[0].Timeout)
	assert.Equal(s.T(), 60*time.Millisecond, s.attempts[1].Timeout)
	assert.Equal(s.T(), 90*time.Millisecond, s.attempts[2].Timeout)
	assert.Equal(s.T(), []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, s.sleeps.Delays())
	assert.Equal(s.T(), time.Duration(0), s.attempts[0].Delay)
	assert.Equal(s.T(), 400*time.Millisecond, s.attempts[2].Delay)
}

func (s *ClientSuite) TestOfflineBeforeRetryWaitsPenalty() {
	s.probe.statuses = []bool{true, false}
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		if s.hits.Load() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}

	resp, err := s.client.Do(context.Background(), Request{Endpoint: "orders"})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, resp.Attempts)
	assert.Equal(s.T(), []time.Duration{time.Second, 200 * time.Millisecond}, s.sleeps.Delays())
	require.Len(s.T(), s.attempts, 2)
	assert.Equal(s.T(), 1200*time.Millisecond, s.attempts[1].Delay)
}

func (s *ClientSuite) TestNetworkFailureRetriedThenClassified() {
	s.server.Close()

	err := s.client.Get(context.Background(), "orders", nil, nil)

	assert.Equal(s.T(), KindNetworkError, KindOf(err))
	assert.Len(s.T(), s.attempts, 2)
	var tf TransportFailure
	assert.True(s.T(), errors.As(err, &tf))
	assert.Equal(s.T(), TransportNetwork, tf.Code)
}

func (s *ClientSuite) TestCancelledContextIsNotRetried() {
	ctx, cancel := context.WithCancel(context.Background())
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}

	err := s.client.Get(ctx, "orders", nil, nil)

	require.Error(s.T(), err)
	assert.EqualValues(s.T(), 1, s.hits.Load())
	assert.Empty(s.T(), s.sleeps.Delays())
}

func (s *ClientSuite) TestCacheServesFreshEntriesAndSweepEvicts() {
	ctx := context.Background()
	params := map[string]string{"status": "pending"}
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"call":%d}`, s.hits.Load())
	}

	first, err := s.client.Do(ctx, Request{Endpoint: "products", Params: params, ReadCache: true})
	require.NoError(s.T(), err)
	assert.False(s.T(), first.Cached)
	assert.Equal(s.T(), 1, s.cache.Len())

	key := respcache.Key(s.server.URL+"/api/v1/admin/products", params)
	_, ok, err := s.cache.Get(ctx, key)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	s.clock.Advance(4 * time.Minute)
	hit, err := s.client.Do(ctx, Request{Endpoint: "products", Params: params, ReadCache: true})
	require.NoError(s.T(), err)
	assert.True(s.T(), hit.Cached)
	assert.JSONEq(s.T(), `{"call":1}`, string(hit.Body))
	assert.EqualValues(s.T(), 1, s.hits.Load())

	s.clock.Advance(2 * time.Minute)
	removed, err := s.cache.Sweep(ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, removed)

	miss, err := s.client.Do(ctx, Request{Endpoint: "products", Params: params, ReadCache: true})
	require.NoError(s.T(), err)
	assert.False(s.T(), miss.Cached)
	assert.JSONEq(s.T(), `{"call":2}`, string(miss.Body))
}

func (s *ClientSuite) TestCacheIgnoredUnlessRequestedAndNeverForPost() {
	ctx := context.Background()

	_, err := s.client.Do(ctx, Request{Endpoint: "orders"})
	require.NoError(s.T(), err)
	_, err = s.client.Do(ctx, Request{Endpoint: "orders"})
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 2, s.hits.Load())

	_, err = s.client.Do(ctx, Request{Method: http.MethodPost, Endpoint: "orders/1/accept", Body: map[string]int{"prep_minutes": 5}})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, s.cache.Len())
}

func (s *ClientSuite) TestQueryParamsEncoded() {
	_, err := s.client.Do(context.Background(), Request{Endpoint: "orders", Params: map[string]string{"status": "pending"}})
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "pending", s.lastReq.Load().URL.Query().Get("status"))
}

func (s *ClientSuite) TestApplicationErrorKeepsBackendMessage() {
	s.status(http.StatusConflict, `{"error":"Order already accepted","code":"invalid_transition"}`)

	err := s.client.Post(context.Background(), "orders/7/accept", map[string]int{"prep_minutes": 5}, nil)

	ce, ok := AsClassified(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), KindAPIError, ce.Kind)
	assert.Equal(s.T(), "Order already accepted", ce.Message)
	assert.Equal(s.T(), "invalid_transition", ce.Code)
	assert.EqualValues(s.T(), 1, s.hits.Load())
}

func (s *ClientSuite) TestNotFoundShownWithLocaleText() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not json"))
	}

	err := s.client.Get(context.Background(), "orders/404", nil, nil)

	ce, ok := AsClassified(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), KindNotFound, ce.Kind)
	assert.True(s.T(), ce.ShowToUser)
	assert.Equal(s.T(), []events.Toast{{Type: events.ToastError, Title: "Error", Subtitle: "The requested item was not found."}}, s.toasts)
}

func (s *ClientSuite) TestQuietDefersDeliveryToCaller() {
	ctx := context.Background()
	s.client.Classifier().SetPolicy(ExtendedPolicy())
	s.status(http.StatusUnauthorized, `{"error":"invalid email or password"}`)

	_, err := s.client.Do(ctx, Request{Method: http.MethodPost, Endpoint: "auth/login", Anonymous: true, Quiet: true})
	require.Error(s.T(), err)
	assert.Zero(s.T(), s.failureLines())
	assert.Empty(s.T(), s.toasts)

	err = s.client.Reclassify(ctx, err, KindLoginError)

	ce, ok := AsClassified(err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), KindLoginError, ce.Kind)
	assert.Equal(s.T(), "Incorrect email or password.", ce.Message)
	assert.True(s.T(), ce.ShowToUser)
	assert.Equal(s.T(), 1, s.failureLines())
	assert.Len(s.T(), s.toasts, 1)

	var hf HTTPFailure
	require.True(s.T(), errors.As(err, &hf))
	assert.Equal(s.T(), http.StatusUnauthorized, hf.StatusCode)
}

func (s *ClientSuite) TestSurfaceReportsQuietError() {
	s.status(http.StatusNotFound, `{"message":"gone"}`)

	_, err := s.client.Do(context.Background(), Request{Endpoint: "orders/1", Quiet: true})
	assert.Empty(s.T(), s.toasts)

	assert.Same(s.T(), err, s.client.Surface(context.Background(), err))
	assert.Len(s.T(), s.toasts, 1)

	plain := errors.New("plain")
	assert.Same(s.T(), plain, s.client.Surface(context.Background(), plain))
}

func (s *ClientSuite) TestNotifySessionExpired() {
	s.client.Classifier().SetPolicy(ExtendedPolicy())

	ce := s.client.Notify(context.Background(), KindSessionExpired, "")

	assert.Equal(s.T(), KindSessionExpired, ce.Kind)
	assert.True(s.T(), ce.ShowToUser)
	assert.Len(s.T(), s.toasts, 1)
}

func (s *ClientSuite) TestDecodeAndEncodeErrors() {
	_, err := s.client.Do(context.Background(), Request{Method: http.MethodPost, Endpoint: "x", Body: make(chan int)})
	assert.ErrorContains(s.T(), err, "failed to encode")
	assert.Zero(s.T(), s.hits.Load())

	var out struct{ OK bool }
	require.NoError(s.T(), s.client.Get(context.Background(), "orders", nil, &out))
	assert.True(s.T(), out.OK)

	s.handler = func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html>")) }
	assert.ErrorContains(s.T(), s.client.Get(context.Background(), "orders", nil, &out), "failed to decode")
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.ErrorContains(t, err, "invalid base URL")

	c, err := New(Options{BaseURL: "https://api.example.com/api/v1/admin"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryPolicy(), c.retry)
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestResolveEndpoint_TableDriven(t *testing.T) {
	c, err := New(Options{BaseURL: "https://api.example.com/api/v1/admin"})
	require.NoError(t, err)

	tests := []struct {
		endpoint string
		want     string
	}{
		{endpoint: "orders", want: "https://api.example.com/api/v1/admin/orders"},
		{endpoint: "/orders/1", want: "https://api.example.com/api/v1/admin/orders/1"},
		{endpoint: "https://other.example.com/ping", want: "https://other.example.com/ping"},
	}

	for _, tc := range tests {
		got, err := c.resolve(tc.endpoint)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
