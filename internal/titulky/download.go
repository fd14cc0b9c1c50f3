package titulky

import (
	"context"
	"html"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

// minArchiveSize is the smallest payload treated as a real archive. The site
// answers with a short stub instead when the account is throttled.
const minArchiveSize = 50

const captchaMarker = "captcha"

var (
	countdownRe = regexp.MustCompile(`(?i)CountDown\(\s*(\d+)\s*\)`)
	downlinkRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<a\s[^>]*?\bid\s*=\s*["']downlink["'][^>]*?\bhref\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?is)<a\s[^>]*?\bhref\s*=\s*["']([^"']+)["'][^>]*?\bid\s*=\s*["']downlink["']`),
	}
)

// Fetch resolves the download page for a subtitle, waits out any countdown it
// imposes, downloads the archive and returns the subtitle files inside it.
// An archive with no subtitle files yields an empty slice and no error.
func (c *Client) Fetch(ctx context.Context, s *Session, id, linkToken string) ([]File, error) {
	if !s.EnsureAuthenticated(ctx) {
		return nil, NewError(ErrAuthFailure, "login failed").WithContext("user", s.Username())
	}

	resolveURL := c.downloadPageURL(id)
	pg, err := c.get(ctx, s, resolveURL, c.listingURL(linkToken))
	if err != nil {
		return nil, err
	}
	body := string(pg.body)

	if strings.Contains(strings.ToLower(body), captchaMarker) {
		return nil, NewError(ErrCaptchaRequired, "site requires captcha").WithContext("id", id)
	}

	if wait := parseCountdown(body); wait > 0 {
		if wait > c.maxWait {
			wait = c.maxWait
		}
		log.Debug("Waiting %s before downloading %s", wait, id)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	link, ok := parseDownloadLink(body)
	if !ok {
		return nil, NewError(ErrDownloadLinkMissing, "download link not found").WithContext("id", id)
	}
	target, err := pg.url.Parse(link)
	if err != nil {
		return nil, WrapError(err, ErrParse, "invalid download link").WithContext("link", link)
	}

	payload, err := c.get(ctx, s, target.String(), resolveURL)
	if err != nil {
		return nil, err
	}
	if len(payload.body) < minArchiveSize {
		return nil, NewError(ErrDownloadTooSmall, "download too small").
			WithContext("id", id).
			WithContext("size", len(payload.body))
	}

	files, err := Unpack(payload.body, fileNameHint(payload.header.Get("Content-Disposition"), target, id))
	if err != nil {
		return nil, WrapError(err, ErrArchiveCorrupt, "unpack archive").WithContext("id", id)
	}
	if len(files) == 0 {
		log.Warn("Archive for %s has no subtitle files", id)
	}
	return files, nil
}

func parseCountdown(body string) time.Duration {
	m := countdownRe.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	seconds, err := strconv.Atoi(m[1])
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func parseDownloadLink(body string) (string, bool) {
	for _, re := range downlinkRes {
		if m := re.FindStringSubmatch(body); m != nil {
			link := strings.TrimSpace(html.UnescapeString(m[1]))
			if link != "" {
				return link, true
			}
		}
	}
	return "", false
}

// fileNameHint names a payload that is a bare subtitle rather than an
// archive.
func fileNameHint(disposition string, target *url.URL, id string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := path.Base(params["filename"]); isSubtitleName(name) {
				return name
			}
		}
	}
	if name := path.Base(target.Path); isSubtitleName(name) {
		return name
	}
	return id + ".srt"
}
