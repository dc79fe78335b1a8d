package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joshuarp/branchdesk/internal/shared/connectivity"
	"github.com/joshuarp/branchdesk/internal/shared/events"
	sharedlog "github.com/joshuarp/branchdesk/internal/shared/log"
	"github.com/joshuarp/branchdesk/internal/shared/respcache"
	"github.com/joshuarp/branchdesk/internal/shared/securestore"
	"github.com/joshuarp/branchdesk/internal/shared/uid"
)

const DefaultTimeout = 5 * time.Second

// CredentialStore is the slice of secure storage the client needs. The client
// never writes credentials.
type CredentialStore interface {
	GetSecureData(ctx context.Context, key string) (string, bool, error)
	DeleteItem(ctx context.Context, key string) error
}

// Attempt describes one transport attempt, reported through Options.OnAttempt.
type Attempt struct {
	Method string
	URL    string
	// Number is 1 for the original attempt.
	Number  int
	Timeout time.Duration
	// Delay is the total wait (offline pause plus backoff) before this attempt.
	Delay time.Duration
}

type Options struct {
	// BaseURL is https://{domain}/api/v1/admin; endpoints are resolved against it.
	BaseURL string
	// Timeout is the first-attempt timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Retry defaults to DefaultRetryPolicy when left zero.
	Retry RetryPolicy

	HTTPClient  *http.Client
	Credentials CredentialStore
	Probe       connectivity.Probe
	Cache       respcache.Cache
	Bus         events.Bus
	Classifier  *Classifier
	Notifier    *Notifier
	RequestIDs  uid.UIDGenerator
	Logger      *slog.Logger

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt observes every transport attempt before it is sent.
	OnAttempt func(Attempt)
}

// Request describes one outbound call.
type Request struct {
	Method string
	// Endpoint is relative to BaseURL ("orders/42/accept") or absolute.
	Endpoint string
	Params   map[string]string
	// Body is JSON-encoded when non-nil.
	Body    any
	Timeout time.Duration

	// ReadCache serves a fresh cached body for GET without a transport call.
	ReadCache bool
	// Anonymous sends no token, and a 401 does not end the session (login).
	Anonymous bool
	// Quiet defers logging and delivery to the caller, which must pass the
	// error to Surface or Reclassify.
	Quiet bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	Cached     bool
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("apiclient: failed to decode response: %w", err)
	}
	return nil
}

type Client struct {
	base        *url.URL
	timeout     time.Duration
	retry       RetryPolicy
	http        *http.Client
	credentials CredentialStore
	probe       connectivity.Probe
	cache       respcache.Cache
	bus         events.Bus
	classifier  *Classifier
	notifier    *Notifier
	requestIDs  uid.UIDGenerator
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	onAttempt   func(Attempt)
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base URL %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:        base,
		timeout:     opts.Timeout,
		retry:       opts.Retry,
		http:        opts.HTTPClient,
		credentials: opts.Credentials,
		probe:       opts.Probe,
		cache:       opts.Cache,
		bus:         opts.Bus,
		classifier:  opts.Classifier,
		notifier:    opts.Notifier,
		requestIDs:  opts.RequestIDs,
		logger:      opts.Logger,
		sleep:       opts.Sleep,
		onAttempt:   opts.OnAttempt,
	}

	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retry == (RetryPolicy{}) {
		c.retry = DefaultRetryPolicy()
	}
	c.retry = c.retry.normalized()
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = sharedlog.Discard()
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.classifier == nil {
		if c.classifier, err = NewClassifier(ClassifierOptions{}); err != nil {
			return nil, err
		}
	}
	if c.notifier == nil {
		c.notifier = NewNotifier(NotifierOptions{Logger: c.logger, Bus: c.bus})
	}

	return c, nil
}

func (c *Client) Classifier() *Classifier { return c.classifier }
func (c *Client) Notifier() *Notifier     { return c.notifier }

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Endpoint: endpoint, Params: params})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Post issues a POST with a JSON body and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Do dispatches req. Backend failures are returned as *ClassifiedError;
// other errors (bad endpoint, unencodable body) are programming errors.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	endpoint, err := c.resolve(req.Endpoint)
	if err != nil {
		return nil, err
	}
	target := withQuery(endpoint, req.Params)
	cacheKey := respcache.Key(endpoint, req.Params)

	if method == http.MethodGet && req.ReadCache {
		if entry, ok := c.cached(ctx, cacheKey); ok {
			return &Response{StatusCode: http.StatusOK, Body: entry.Body, Cached: true}, nil
		}
	}

	var payload []byte
	if req.Body != nil {
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("apiclient: failed to encode %s %s body: %w", method, endpoint, err)
		}
	}

	meta := requestMeta{method: method, url: target, requestID: c.requestID(ctx)}

	if !c.online(ctx) {
		return nil, c.fail(ctx, req, TransportFailure{Code: TransportNetwork, URL: target, Err: ErrOffline}, meta)
	}

	var token string
	if !req.Anonymous {
		token = c.token(ctx)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	var delay time.Duration
	for attempt := 1; ; attempt++ {
		meta.attempts = attempt
		if c.onAttempt != nil {
			c.onAttempt(Attempt{Method: method, URL: target, Number: attempt, Timeout: timeout, Delay: delay})
		}

		resp, failure := c.send(ctx, method, target, payload, token, meta.requestID, timeout)
		if failure == nil {
			resp.Attempts = attempt
			if method == http.MethodGet {
				c.store(ctx, cacheKey, resp.Body)
			}
			return resp, nil
		}

		if isUnauthorized(failure) && !req.Anonymous {
			c.expireSession(ctx)
			return nil, c.fail(ctx, req, failure, meta)
		}

		if ctx.Err() != nil || !c.retry.ShouldRetry(failure, attempt-1) {
			return nil, c.fail(ctx, req, failure, meta)
		}

		c.logger.WarnContext(ctx, "api request retrying",
			"method", method,
			"url", target,
			"request_id", meta.requestID,
			"attempt", attempt,
			"error", failure.Error(),
		)

		delay = 0
		if !c.online(ctx) {
			wait := c.retry.OfflineWait()
			if err := c.sleep(ctx, wait); err != nil {
				return nil, c.fail(ctx, req, transportFailure(target, err), meta)
			}
			delay += wait
		}

		backoff := c.retry.Backoff(attempt)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, c.fail(ctx, req, transportFailure(target, err), meta)
		}
		delay += backoff
		timeout = c.retry.NextTimeout(timeout)
	}
}

// Surface delivers a classified error returned by a Quiet request.
func (c *Client) Surface(ctx context.Context, err error) error {
	if ce, ok := AsClassified(err); ok {
		c.notifier.Report(ctx, *ce)
	}
	return err
}

// Reclassify re-resolves err under kind (e.g. UNAUTHORIZED on login becomes
// LOGIN_ERROR), reports it, and returns the new error wrapping the old one.
// Errors that are not classified are returned unchanged.
func (c *Client) Reclassify(ctx context.Context, err error, kind Kind) error {
	ce, ok := AsClassified(err)
	if !ok {
		return err
	}

	var raw string
	if f, isFailure := ce.cause.(Failure); isFailure {
		raw = rawMessage(f)
	}

	next := c.classifier.Resolve(kind, ce.StatusCode, raw, ce)
	next.Code = ce.Code
	next.meta = ce.meta
	c.notifier.Report(ctx, next)
	return &next
}

// Notify reports a condition that did not come from a request, such as a
// session expiry noticed by the shell.
func (c *Client) Notify(ctx context.Context, kind Kind, raw string) *ClassifiedError {
	ce := c.classifier.Resolve(kind, 0, raw, nil)
	c.notifier.Report(ctx, ce)
	return &ce
}

func (c *Client) fail(ctx context.Context, req Request, f Failure, meta requestMeta) error {
	ce := c.classifier.Classify(f)
	ce.meta = meta
	if !req.Quiet {
		c.notifier.Report(ctx, ce)
	}
	return &ce
}

func (c *Client) send(
	ctx context.Context,
	method, target string,
	payload []byte,
	token, requestID string,
	timeout time.Duration,
) (*Response, Failure) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, TransportFailure{Code: TransportNetwork, URL: target, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID != "" {
		httpReq.Header.Set(uid.Header, requestID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportFailure(target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportFailure(target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseFailure(target, resp.StatusCode, raw)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

func (c *Client) resolve(endpoint string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("apiclient: invalid endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return c.base.ResolveReference(ref).String(), nil
}

func withQuery(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + values.Encode()
}

func (c *Client) online(ctx context.Context) bool {
	if c.probe == nil {
		return true
	}
	return c.probe.FetchStatus(ctx).Online()
}

func (c *Client) token(ctx context.Context) string {
	if c.credentials == nil {
		return ""
	}
	token, ok, err := c.credentials.GetSecureData(ctx, securestore.TokenKey)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read stored token, sending unauthenticated", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

func (c *Client) requestID(ctx context.Context) string {
	if c.requestIDs == nil {
		return ""
	}
	id, err := c.requestIDs.Generate(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "failed to generate request id", "error", err)
		return ""
	}
	return id
}

func (c *Client) cached(ctx context.Context, key string) (respcache.Entry, bool) {
	if c.cache == nil {
		return respcache.Entry{}, false
	}
	entry, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.DebugContext(ctx, "response cache read failed", "key", key, "error", err)
		return respcache.Entry{}, false
	}
	return entry, ok
}

func (c *Client) store(ctx context.Context, key string, body []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, body); err != nil {
		c.logger.DebugContext(ctx, "response cache write failed", "key", key, "error", err)
	}
}

// expireSession runs the 401 side effects: drop credentials, then signal once.
func (c *Client) expireSession(ctx context.Context) {
	if c.credentials != nil {
		for _, key := range []string{securestore.TokenKey, securestore.UserKey} {
			if err := c.credentials.DeleteItem(ctx, key); err != nil {
				c.logger.ErrorContext(ctx, "failed to clear credential after 401", "key", key, "error", err)
			}
		}
	}
	if c.bus != nil {
		c.bus.Emit(events.TopicSessionExpired, nil)
	}
}
