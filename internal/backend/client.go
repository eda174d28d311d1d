// Package backend is the sync engine's client for the kitchen server API.
// One Client serves as the engine's Store, Auth and Feed collaborator.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoSession is returned by calls that need a signed-in user.
	ErrNoSession = errors.New("backend: not signed in")
	// ErrNoProfile means the user is signed in but has not completed signup.
	ErrNoProfile = errors.New("backend: profile setup required")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

type errorBody struct {
	Error string `json:"error"`
}

// Session is the signed-in identity and its token pair.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// refreshSkew renews access tokens slightly before they expire.
const refreshSkew = 30 * time.Second

func (s *Session) stale(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.Add(refreshSkew).After(s.ExpiresAt)
}

// Client talks to the kitchen server. Mutations are never retried; the
// only repeated request is one replay after a 401 answered by a token
// refresh.
type Client struct {
	baseURL string
	http    *resty.Client
	stream  *resty.Client
	log     *zap.Logger

	mu        sync.Mutex
	session   *Session
	onSession func(*Session)

	refreshes singleflight.Group
}

// New returns a client for baseURL. timeout bounds each request except the
// change stream, which stays open.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		stream: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "text/event-stream"),
		log: log.Named("backend"),
	}
}

// SetSession installs a previously persisted session; nil signs out locally.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	if s != nil {
		cp := *s
		s = &cp
	}
	c.session = s
	c.mu.Unlock()
}

// OnSessionChange registers f to be called whenever tokens are issued,
// rotated or dropped, so they can be persisted.
func (c *Client) OnSessionChange(f func(*Session)) {
	c.mu.Lock()
	c.onSession = f
	c.mu.Unlock()
}

func (c *Client) current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	return &cp
}

func (c *Client) replaceSession(s *Session) {
	c.mu.Lock()
	c.session = s
	hook := c.onSession
	c.mu.Unlock()
	if hook != nil {
		if s != nil {
			cp := *s
			s = &cp
		}
		hook(s)
	}
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) (*resty.Response, error) {
	r := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if s := c.current(); s != nil {
		r.SetAuthToken(s.AccessToken)
	}
	if body != nil {
		r.SetBody(body)
	}
	if out != nil {
		r.SetResult(out)
	}
	return r.Execute(method, path)
}

// call performs one API request and decodes a 2xx JSON body into out. A 401
// on an authenticated request triggers one token refresh and one replay.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body, out)
	if err == nil && resp.StatusCode() == http.StatusUnauthorized && c.current() != nil {
		if rerr := c.refresh(ctx); rerr == nil {
			resp, err = c.send(ctx, method, path, body, out)
		}
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return asAPIError(resp)
	}
	return nil
}

func asAPIError(resp *resty.Response) error {
	ae := &APIError{Status: resp.StatusCode()}
	if eb, ok := resp.Error().(*errorBody); ok && eb != nil {
		ae.Message = eb.Error
	}
	return ae
}

func familyPath(family string, parts ...string) string {
	p := "/v1/families/" + url.PathEscape(family)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}
