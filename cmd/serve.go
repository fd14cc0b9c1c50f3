package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/david325345/stremio-titulky.com-docker/internal/httpapi"
	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the subtitle API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			closeLog, err := setupServeLogging(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return err
			}
			defer closeLog()

			if err := os.MkdirAll(cfg.Cache.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			lock := flock.New(filepath.Join(cfg.Cache.DataDir, "titulky.lock"))
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another titulky server is already using " + cfg.Cache.DataDir)
			}
			defer func() { _ = lock.Unlock() }()

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.svc.Close(); err != nil {
					log.Error("%v", err)
				}
			}()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.cache.LoadIndex(runCtx); err != nil {
				log.Error("Loading durable cache index failed: %v", err)
			}
			scheduler, err := a.cache.StartIndexSync(runCtx, cfg.Cache.IndexSyncCron)
			if err != nil {
				return err
			}

			srv := httpapi.NewServer(a.svc, a.creds)
			log.Info("Serving titulky.com subtitles as %s", cfg.Titulky.Username)
			return runWithComponents(runCtx, cfg.HTTP.Addr, scheduler, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func setupServeLogging(level, file string) (func(), error) {
	lvl := log.ParseLevel(level)
	if file == "" {
		log.InitLogger(lvl)
		return func() {}, nil
	}
	fl, err := log.NewFileLogger(file, lvl, 10, 5, true)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fl.Logger)
	return func() { _ = fl.Close() }, nil
}

var _ cronEngine = (*cron.Cron)(nil)
