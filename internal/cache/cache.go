// Package cache serves converted subtitles from a process-local tier, then a
// durable store, and only then from the origin site, with at most one origin
// fetch in flight per subtitle id.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"golang.org/x/sync/singleflight"

	"github.com/david325345/stremio-titulky.com-docker/internal/persistence"
	"github.com/david325345/stremio-titulky.com-docker/internal/subtitle"
	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

const (
	DefaultLocalTTL     = time.Hour
	DefaultFetchTimeout = 2 * time.Minute

	keyPrefix = "subtitles/"
	keySuffix = ".vtt"

	metaFileName = "filename"
	metaLanguage = "language"
	metaStoredAt = "stored_at"
)

var errNoFiles = errors.New("no subtitle files in download")

// ObjectStore is the durable tier.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) (persistence.Object, error)
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Delete(ctx context.Context, key string) error
}

// FetchFunc downloads the subtitle files for one id from the origin.
type FetchFunc func(ctx context.Context) ([]titulky.File, error)

// Entry is a converted subtitle as held by either tier.
type Entry struct {
	ID       string
	Content  string
	FileName string
	Language string
	StoredAt time.Time
}

type Source string

const (
	SourceLocal   Source = "local"
	SourceDurable Source = "durable"
	SourceOrigin  Source = "origin"
	SourceLimit   Source = "limit"
)

// Result is what Serve hands back. Limited results carry the placeholder
// cue instead of the subtitle.
type Result struct {
	Content  string
	FileName string
	Limited  bool
	Source   Source
}

type Config struct {
	LocalTTL time.Duration
	// FetchTimeout bounds one origin fetch, which keeps running after the
	// request that started it goes away.
	FetchTimeout time.Duration
}

type Cache struct {
	local        *ttlcache.Cache[string, Entry]
	store        ObjectStore
	fetchTimeout time.Duration

	mu    sync.RWMutex
	index map[string]struct{}

	flights singleflight.Group // keyed by subtitle id
	syncs   singleflight.Group
	now     func() time.Time
}

func New(store ObjectStore, cfg Config) *Cache {
	ttl := cfg.LocalTTL
	if ttl <= 0 {
		ttl = DefaultLocalTTL
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Cache{
		local:        ttlcache.New(ttlcache.Options[string, Entry]{}.SetDefaultTTL(ttl)),
		store:        store,
		fetchTimeout: fetchTimeout,
		index:        make(map[string]struct{}),
		now:          time.Now,
	}
}

// Key is the durable-store key of a subtitle id.
func Key(id string) string {
	return keyPrefix + id + keySuffix
}

func idFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix)
	return id, id != ""
}

// LoadIndex replaces the existence index with the ids currently in the
// durable store.
func (c *Cache) LoadIndex(ctx context.Context) error {
	keys, err := c.store.List(ctx, keyPrefix)
	if err != nil {
		return err
	}
	index := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if id, ok := idFromKey(key); ok {
			index[id] = struct{}{}
		}
	}

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	log.Info("Durable cache index holds %d subtitles", len(index))
	return nil
}

// Cached reports whether id is known to be in the durable store.
func (c *Cache) Cached(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[id]
	return ok
}

func (c *Cache) IndexSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

func (c *Cache) markIndexed(id string) {
	c.mu.Lock()
	c.index[id] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) unmarkIndexed(id string) {
	c.mu.Lock()
	delete(c.index, id)
	c.mu.Unlock()
}

func isCueText(data []byte) bool {
	return strings.HasPrefix(strings.TrimPrefix(string(data), "\ufeff"), "WEBVTT")
}

// Serve returns the converted subtitle for id. Any origin failure yields the
// limit placeholder rather than an error, so the caller always has something
// to play. Concurrent calls for the same id share one origin fetch.
func (c *Cache) Serve(ctx context.Context, id string, fetch FetchFunc) Result {
	if e, ok := c.local.Get(id); ok {
		return resultFrom(e, SourceLocal)
	}
	if e, ok := c.loadDurable(ctx, id); ok {
		return resultFrom(e, SourceDurable)
	}

	ch := c.flights.DoChan(id, func() (any, error) {
		if e, ok := c.local.Get(id); ok {
			return e, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetchAndStore(fetchCtx, id, fetch)
	})

	select {
	case <-ctx.Done():
		log.Debug("Caller stopped waiting for subtitle %s", id)
		return limitResult()
	case res := <-ch:
		if res.Err != nil {
			logFetchFailure(id, res.Err)
			return limitResult()
		}
		if res.Shared {
			log.Debug("Subtitle %s served from a shared fetch", id)
		}
		return resultFrom(res.Val.(Entry), SourceOrigin)
	}
}

func (c *Cache) loadDurable(ctx context.Context, id string) (Entry, bool) {
	obj, err := c.store.Get(ctx, Key(id))
	if errors.Is(err, persistence.ErrNotFound) {
		return Entry{}, false
	}
	if err != nil {
		log.Error("Durable cache read for %s failed: %v", id, err)
		return Entry{}, false
	}
	if !isCueText(obj.Data) {
		// left behind by an older writer or a partial copy; refetch it
		log.Warn("Durable cache entry for %s is not WebVTT, dropping it", id)
		if err := c.store.Delete(ctx, Key(id)); err != nil {
			log.Error("Durable cache delete for %s failed: %v", id, err)
		}
		c.unmarkIndexed(id)
		return Entry{}, false
	}

	e := Entry{
		ID:       id,
		Content:  string(obj.Data),
		FileName: obj.Metadata[metaFileName],
		Language: obj.Metadata[metaLanguage],
		StoredAt: obj.UpdatedAt,
	}
	c.local.Set(id, e, ttlcache.DefaultTTL)
	c.markIndexed(id)
	return e, true
}

func (c *Cache) fetchAndStore(ctx context.Context, id string, fetch FetchFunc) (Entry, error) {
	files, err := fetch(ctx)
	if err != nil {
		return Entry{}, err
	}
	if len(files) == 0 {
		return Entry{}, errNoFiles
	}

	first := files[0]
	content := subtitle.ConvertToCueFormat(first.Data, subtitle.FormatFromName(first.Name))
	e := Entry{
		ID:       id,
		Content:  content,
		FileName: first.Name,
		StoredAt: c.now().UTC(),
	}
	if parsed, err := subtitle.ReadSRTBytes([]byte(content), first.Name); err == nil {
		e.Language = parsed.Language.String()
	}

	c.local.Set(id, e, ttlcache.DefaultTTL)

	metadata := map[string]string{
		metaFileName: e.FileName,
		metaLanguage: e.Language,
		metaStoredAt: e.StoredAt.Format(time.RFC3339),
	}
	if err := c.store.Put(ctx, Key(id), []byte(content), metadata); err != nil {
		log.Error("Durable cache write for %s failed: %v", id, err)
	} else {
		c.markIndexed(id)
	}
	log.Info("Fetched subtitle %s (%s)", id, e.FileName)
	return e, nil
}

func logFetchFailure(id string, err error) {
	if errors.Is(err, errNoFiles) {
		log.Warn("Subtitle %s: %v", id, err)
		return
	}
	if kind, ok := titulky.KindOf(err); ok && kind.Limited() {
		log.Warn("Subtitle %s refused by the site: %v", id, err)
		return
	}
	log.Error("Subtitle %s fetch failed: %v", id, err)
}

func resultFrom(e Entry, source Source) Result {
	return Result{Content: e.Content, FileName: e.FileName, Source: source}
}

func limitResult() Result {
	return Result{Content: LimitCue, FileName: limitFileName, Limited: true, Source: SourceLimit}
}
