package titulky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://premium.titulky.com"

	defaultUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) stremio-titulky"
	defaultHTTPTimeout   = 30 * time.Second
	defaultMaxWait       = 30 * time.Second
	defaultRetryDelay    = 500 * time.Millisecond
	defaultRatePerSecond = 2.0

	maxBodySize = 20 << 20
)

// Config describes the site client configuration.
type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	RetryAttempts     int
	RetryDelay        time.Duration
	// MaxWait caps the countdown the download page asks us to sit through.
	MaxWait    time.Duration
	HTTPClient *http.Client
}

// Client talks to the subtitle site. It is safe for concurrent use; all
// per-account state lives in Session.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	http       *http.Client
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
	maxWait    time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("titulky: parse base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("titulky: base url %q must be absolute", base)
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRatePerSecond
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		http:       client,
		limiter:    rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		attempts:   uint(attempts),
		retryDelay: retryDelay,
		maxWait:    maxWait,
		now:        time.Now,
		sleep:      SleepWithContext,
	}, nil
}

// BaseURL returns the site root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type page struct {
	url    *url.URL
	header http.Header
	body   []byte
}

// get fetches target through the session, retrying transient failures.
// Status codes >= 400 other than 5xx are not retried.
func (c *Client) get(ctx context.Context, s *Session, target, referer string) (*page, error) {
	var out *page
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.applyHeaders(req, referer)

			resp, err := s.do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return fmt.Errorf("titulky: %s returned %s", target, resp.Status)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("titulky: %s returned %s", target, resp.Status))
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return fmt.Errorf("titulky: read body: %w", err)
			}
			out = &page{url: resp.Request.URL, header: resp.Header, body: body}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetriable),
	)
	if err != nil {
		return nil, WrapError(err, ErrNetwork, "request failed").WithContext("url", target)
	}
	return out, nil
}

// postForm sends a form once; logins are never retried.
func (c *Client) postForm(ctx context.Context, s *Session, target string, form url.Values) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("titulky: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.applyHeaders(req, c.baseURL.String()+"/")

	resp, err := s.do(req)
	if err != nil {
		return nil, WrapError(err, ErrNetwork, "request failed").WithContext("url", target)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, WrapError(err, ErrNetwork, "read body").WithContext("url", target)
	}
	return &page{url: resp.Request.URL, header: resp.Header, body: body}, nil
}

func (c *Client) applyHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "cs,sk;q=0.9,en;q=0.5")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

func (c *Client) pageURL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) loginURL() string {
	return c.pageURL("/", nil)
}

func (c *Client) searchURL(query string) string {
	return c.pageURL("/", url.Values{
		"action":   {"search"},
		"Fulltext": {query},
	})
}

func (c *Client) listingURL(linkToken string) string {
	return c.pageURL("/"+url.PathEscape(linkToken)+".htm", nil)
}

func (c *Client) downloadPageURL(id string) string {
	return c.pageURL("/idown.php", url.Values{
		"titulky": {id},
		"zip":     {"z"},
	})
}

// SleepWithContext blocks for d, returning early if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetriable reports whether err is a transient transport condition
// (timeouts, resets, 5xx).
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, token := range []string{
		" 500 ", " 502 ", " 503 ", " 504 ",
		"timeout",
		"connection reset",
		"connection refused",
		"unexpected eof",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
