package cache

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/david325345/stremio-titulky.com-docker/pkg/icron"
	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

// StartIndexSync reloads the existence index on the given schedule so that
// entries written by other instances sharing the store become visible. The
// returned scheduler is already running; stop it on shutdown.
func (c *Cache) StartIndexSync(ctx context.Context, expr string) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithParser(icron.Parser))
	_, err := scheduler.AddFunc(expr, func() { c.syncIndex(ctx) })
	if err != nil {
		return nil, err
	}

	if info, err := icron.NextTrigger(expr, time.Now()); err == nil {
		log.Info("Durable cache index sync scheduled: %s", info)
	}
	scheduler.Start()
	return scheduler, nil
}

// syncIndex runs LoadIndex unless a sync is already in progress.
func (c *Cache) syncIndex(ctx context.Context) {
	_, _, _ = c.syncs.Do("index", func() (any, error) {
		if err := c.LoadIndex(ctx); err != nil {
			log.Error("Durable cache index sync failed: %v", err)
		}
		return nil, nil
	})
}
