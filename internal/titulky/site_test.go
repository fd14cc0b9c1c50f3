package titulky

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testUser     = "user"
	testPassword = "secret"
)

// fakeSite imitates the handful of pages the client touches.
type fakeSite struct {
	t *testing.T

	logins     atomic.Int32
	loginDelay time.Duration

	mu       sync.Mutex
	queries  []string
	results  map[string]string
	dlPage   string
	payload  []byte
	header   http.Header
	referers []string

	srv *httptest.Server
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{t: t, results: make(map[string]string), header: make(http.Header)}

	mux := http.NewServeMux()
	mux.HandleFunc("/", site.handleRoot)
	mux.HandleFunc("/welcome", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("PHPSESSID"); err != nil {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "Welcome", Value: "1"})
		_, _ = w.Write([]byte("<html>Vítejte</html>"))
	})
	mux.HandleFunc("/idown.php", func(w http.ResponseWriter, r *http.Request) {
		if !site.authorized(r) {
			http.Error(w, "login", http.StatusForbidden)
			return
		}
		site.mu.Lock()
		site.referers = append(site.referers, r.Referer())
		page := site.dlPage
		site.mu.Unlock()
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		if !site.authorized(r) {
			http.Error(w, "login", http.StatusForbidden)
			return
		}
		site.mu.Lock()
		site.referers = append(site.referers, r.Referer())
		payload := site.payload
		for k, v := range site.header {
			w.Header()[k] = v
		}
		site.mu.Unlock()
		_, _ = w.Write(payload)
	})

	site.srv = httptest.NewServer(mux)
	t.Cleanup(site.srv.Close)
	return site
}

func (f *fakeSite) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodPost {
		f.logins.Add(1)
		if f.loginDelay > 0 {
			time.Sleep(f.loginDelay)
		}
		if r.FormValue("Login") != testUser || r.FormValue("Password") != testPassword {
			_, _ = w.Write([]byte("<html>" + string(loginFailureMarker) + "</html>"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc"})
		http.SetCookie(w, &http.Cookie{Name: "LogonLogin", Value: testUser})
		http.Redirect(w, r, "/welcome", http.StatusFound)
		return
	}

	if r.URL.Query().Get("action") == "search" {
		if !f.authorized(r) {
			http.Error(w, "login", http.StatusForbidden)
			return
		}
		q := r.URL.Query().Get("Fulltext")
		f.mu.Lock()
		f.queries = append(f.queries, q)
		page, ok := f.results[q]
		f.mu.Unlock()
		if !ok {
			page = "<html><p>" + string(noResultsMarker) + "</p></html>"
		}
		_, _ = w.Write([]byte(page))
		return
	}
	_, _ = w.Write([]byte("<html>home</html>"))
}

func (f *fakeSite) authorized(r *http.Request) bool {
	c, err := r.Cookie("LogonLogin")
	return err == nil && c.Value == testUser
}

func (f *fakeSite) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *fakeSite) client(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:           f.srv.URL,
		RequestsPerSecond: 1000,
		RetryAttempts:     2,
		RetryDelay:        time.Millisecond,
		MaxWait:           30 * time.Second,
	})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func buildZip(t *testing.T, files map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if body, ok := files[name]; ok {
			_, err = w.Write([]byte(body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
