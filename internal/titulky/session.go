package titulky

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

// SessionTTL is how long a successful login is trusted before the next
// request logs in again.
const SessionTTL = 30 * time.Minute

const maxRedirects = 10

// loginFailureMarker appears on the page the site returns for a rejected
// login.
var loginFailureMarker = []byte("Neplatné přihlašovací údaje")

// Session is one authenticated identity against the site. Cookies received on
// any response, redirects included, are merged by name and replayed on every
// later request. Concurrent callers that find the session stale share a
// single login attempt.
type Session struct {
	ID     string
	client *Client
	creds  Credentials
	http   *http.Client

	mu            sync.Mutex
	authenticated bool
	lastLogin     time.Time
	cookies       map[string]*http.Cookie

	login singleflight.Group
}

// NewSession creates an unauthenticated session for creds.
func (c *Client) NewSession(creds Credentials) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		client:  c,
		creds:   creds,
		cookies: make(map[string]*http.Cookie),
	}
	s.http = &http.Client{
		Transport:     c.http.Transport,
		Timeout:       c.http.Timeout,
		CheckRedirect: s.followRedirect,
	}
	return s
}

// Username returns the account this session logs in as.
func (s *Session) Username() string {
	return s.creds.Username
}

// Matches reports whether creds are the ones this session logs in with.
func (s *Session) Matches(creds Credentials) bool {
	return s.creds == creds
}

// Fresh reports whether the last login is still inside SessionTTL.
func (s *Session) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freshLocked()
}

func (s *Session) freshLocked() bool {
	return s.authenticated && s.client.now().Sub(s.lastLogin) < SessionTTL
}

// Invalidate forces the next request to log in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
}

// EnsureAuthenticated logs in when the session is stale and reports whether
// it is usable. Login failures are logged, not returned.
func (s *Session) EnsureAuthenticated(ctx context.Context) bool {
	if s.Fresh() {
		return true
	}

	ch := s.login.DoChan("login", func() (any, error) {
		if s.Fresh() {
			return true, nil
		}
		// The attempt is shared, so one caller going away must not fail it
		// for the others.
		loginCtx := context.WithoutCancel(ctx)
		if err := s.authenticate(loginCtx); err != nil {
			log.Warn("Login failed for %s: %v", s.creds.Username, err)
			return false, nil
		}
		log.Info("Logged in as %s", s.creds.Username)
		return true, nil
	})

	select {
	case <-ctx.Done():
		return false
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	}
}

func (s *Session) authenticate(ctx context.Context) error {
	if !s.creds.Valid() {
		s.setAuthenticated(false)
		return NewError(ErrAuthFailure, "missing credentials")
	}

	form := url.Values{
		"Login":      {s.creds.Username},
		"Password":   {s.creds.Password},
		"foreverlog": {"0"},
		"Detail2":    {""},
	}
	pg, err := s.client.postForm(ctx, s, s.client.loginURL(), form)
	if err != nil {
		s.setAuthenticated(false)
		return err
	}
	if bytes.Contains(pg.body, loginFailureMarker) {
		s.setAuthenticated(false)
		return NewError(ErrAuthFailure, "credentials rejected").WithContext("user", s.creds.Username)
	}
	s.setAuthenticated(true)
	return nil
}

func (s *Session) setAuthenticated(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = ok
	if ok {
		s.lastLogin = s.client.now()
	}
}

// do sends req with the session cookies after waiting on the client rate
// limiter, and merges any cookies the response sets.
func (s *Session) do(req *http.Request) (*http.Response, error) {
	if err := s.client.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	s.applyCookies(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	s.mergeCookies(resp.Cookies())
	return resp, nil
}

// followRedirect captures cookies set on the redirect response, which the
// http.Client would otherwise drop, and replays the merged set on the next
// hop.
func (s *Session) followRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("titulky: too many redirects")
	}
	if req.Response != nil {
		s.mergeCookies(req.Response.Cookies())
	}
	req.Header.Del("Cookie")
	s.applyCookies(req)
	return nil
}

func (s *Session) applyCookies(req *http.Request) {
	for _, c := range s.Cookies() {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}

func (s *Session) mergeCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cookies {
		if c.MaxAge < 0 {
			delete(s.cookies, c.Name)
			continue
		}
		s.cookies[c.Name] = c
	}
}

// Cookies returns the current cookie set ordered by name.
func (s *Session) Cookies() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
