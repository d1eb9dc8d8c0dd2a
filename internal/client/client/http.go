package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	loginPath    = "auth/login/"
	registerPath = "auth/register/"
	refreshPath  = "auth/token/refresh/"
	healthPath   = "health/"

	// refreshLeeway is how close to expiry an access token is refreshed
	// before use.
	refreshLeeway = 30 * time.Second

	maxBodyExcerpt = 512
	maxBodySize    = 16 << 20
)

// Options configures an HTTPClient.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Tokens            TokenSource
	Logger            logging.Logger
	// HTTP overrides the transport, mainly for tests.
	HTTP *http.Client
}

// HTTPClient talks to the REST server. It is safe for concurrent use.
type HTTPClient struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	tokens  TokenSource
	log     logging.Logger
	now     func() time.Time

	refreshMu sync.Mutex
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	return &HTTPClient{
		base:    base,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		tokens:  opts.Tokens,
		log:     log,
		now:     time.Now,
	}, nil
}

// resolve turns a collection-relative path or an absolute URL (as found in
// a paginated "next" link) into a request URL.
func (c *HTTPClient) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(u).String(), nil
}

// sameOrigin reports whether target has the scheme and host of the base URL.
func (c *HTTPClient) sameOrigin(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == c.base.Scheme && u.Host == c.base.Host
}

type request struct {
	op     string
	method string
	path   string
	body   []byte
	auth   bool
}

func (c *HTTPClient) do(ctx context.Context, r request) ([]byte, error) {
	target, err := c.resolve(r.path)
	if err != nil {
		return nil, &RemoteError{Op: r.op, Err: fmt.Errorf("%w: %v", ErrRejected, err)}
	}

	auth := r.auth && c.tokens != nil
	if auth && !c.sameOrigin(target) {
		c.log.Warn(ctx, "not sending credentials to a foreign host", "op", r.op, "url", target)
		auth = false
	}

	var tokens Tokens
	if auth {
		tokens, err = c.freshTokens(ctx)
		if err != nil {
			return nil, err
		}
	}

	status, body, err := c.send(ctx, r, target, tokens.Access)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && auth && tokens.Refresh != "" {
		c.log.Debug(ctx, "access token rejected, refreshing", "op", r.op)
		refreshed, rerr := c.refresh(ctx, tokens)
		if rerr != nil {
			return nil, rerr
		}
		status, body, err = c.send(ctx, r, target, refreshed.Access)
		if err != nil {
			return nil, err
		}
	}

	if err := classify(r.op, status, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) send(ctx context.Context, r request, target, access string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, &RemoteError{Op: r.op, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return 0, nil, &RemoteError{Op: r.op, Err: fmt.Errorf("%w: %v", ErrRejected, err)}
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &RemoteError{Op: r.op, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, &RemoteError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}
	return resp.StatusCode, data, nil
}

func classify(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var cause error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		cause = ErrUnauthorized
	case status == http.StatusNotFound:
		cause = common.ErrorNotFound
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		cause = ErrUnavailable
	default:
		cause = ErrRejected
	}
	return &RemoteError{Op: op, StatusCode: status, Body: excerpt(body), Err: cause}
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxBodyExcerpt {
		return s[:maxBodyExcerpt] + "..."
	}
	return s
}

// freshTokens returns the stored tokens, refreshing the access token first
// when it expires within refreshLeeway.
func (c *HTTPClient) freshTokens(ctx context.Context) (Tokens, error) {
	t, err := c.tokens.Tokens(ctx)
	if err != nil {
		return Tokens{}, fmt.Errorf("load tokens: %w", err)
	}
	if t.Access == "" || t.Refresh == "" {
		return t, nil
	}
	exp, ok := TokenExpiry(t.Access)
	if !ok || exp.Sub(c.now()) > refreshLeeway {
		return t, nil
	}
	refreshed, err := c.refresh(ctx, t)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return t, nil
		}
		return Tokens{}, err
	}
	return refreshed, nil
}

// refresh exchanges stale.Refresh for new tokens. If another goroutine
// already replaced stale, its result is reused.
func (c *HTTPClient) refresh(ctx context.Context, stale Tokens) (Tokens, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cur, err := c.tokens.Tokens(ctx)
	if err != nil {
		return Tokens{}, fmt.Errorf("load tokens: %w", err)
	}
	if cur.Access != "" && cur.Access != stale.Access {
		return cur, nil
	}

	payload, _ := json.Marshal(map[string]string{"refresh": stale.Refresh})
	target, err := c.resolve(refreshPath)
	if err != nil {
		return Tokens{}, err
	}
	status, body, err := c.send(ctx, request{op: "refresh token", method: http.MethodPost, body: payload}, target, "")
	if err != nil {
		return Tokens{}, err
	}
	if err := classify("refresh token", status, body); err != nil {
		if status == http.StatusBadRequest {
			return Tokens{}, &RemoteError{Op: "refresh token", StatusCode: status, Body: excerpt(body), Err: ErrUnauthorized}
		}
		return Tokens{}, err
	}

	next := parseTokens(body)
	if next.Access == "" {
		return Tokens{}, &RemoteError{Op: "refresh token", StatusCode: status, Err: fmt.Errorf("%w: no access token in response", ErrUnauthorized)}
	}
	if next.Refresh == "" {
		next.Refresh = stale.Refresh
	}
	if err := c.tokens.SaveTokens(ctx, next); err != nil {
		return Tokens{}, fmt.Errorf("save tokens: %w", err)
	}
	return next, nil
}

// parseTokens accepts {"access","refresh"}, {"access_token","refresh_token"}
// and either of them nested under "tokens".
func parseTokens(body []byte) Tokens {
	root := gjson.ParseBytes(body)
	if nested := root.Get("tokens"); nested.IsObject() {
		root = nested
	}
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v := root.Get(k); v.Exists() {
				return v.String()
			}
		}
		return ""
	}
	return Tokens{
		Access:  pick("access", "access_token"),
		Refresh: pick("refresh", "refresh_token"),
	}
}

// TokenExpiry reads the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (c *HTTPClient) Register(ctx context.Context, username string, password []byte) error {
	payload, err := json.Marshal(map[string]string{"username": username, "password": string(password)})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{op: "register", method: http.MethodPost, path: registerPath, body: payload})
	return err
}

func (c *HTTPClient) Login(ctx context.Context, username string, password []byte) (Tokens, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": string(password)})
	if err != nil {
		return Tokens{}, err
	}
	body, err := c.do(ctx, request{op: "login", method: http.MethodPost, path: loginPath, body: payload})
	if err != nil {
		return Tokens{}, err
	}
	t := parseTokens(body)
	if t.Access == "" {
		return Tokens{}, &RemoteError{Op: "login", StatusCode: http.StatusOK, Body: excerpt(body), Err: fmt.Errorf("%w: no access token in response", ErrRejected)}
	}
	return t, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, request{op: "ping", method: http.MethodGet, path: healthPath})
	return err
}
