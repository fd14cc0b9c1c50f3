package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/david325345/stremio-titulky.com-docker/internal/cache"
	"github.com/david325345/stremio-titulky.com-docker/internal/config"
	"github.com/david325345/stremio-titulky.com-docker/internal/persistence"
	"github.com/david325345/stremio-titulky.com-docker/internal/service"
	"github.com/david325345/stremio-titulky.com-docker/internal/titulky"
	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

type commandContext struct {
	configFlag   string
	logLevelFlag string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "titulky",
		Short:         "Subtitles from titulky.com, converted to WebVTT",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "TOML configuration file (default $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))

	return rootCmd
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.configFlag != "" {
		cfg, err = config.Load(c.configFlag)
	} else {
		cfg, err = config.NewFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if c.logLevelFlag != "" {
		cfg.Log.Level = c.logLevelFlag
	}
	c.cfg = cfg
	return cfg, nil
}

// cliLogging sends logs to stderr so command output stays clean.
func (c *commandContext) cliLogging(defaultLevel string) {
	level := c.logLevelFlag
	if level == "" {
		level = defaultLevel
	}
	log.SetLogger(log.NewWriterLogger(os.Stderr, log.ParseLevel(level)))
}

func credentials(cfg *config.Config) titulky.Credentials {
	return titulky.Credentials{Username: cfg.Titulky.Username, Password: cfg.Titulky.Password}
}

// app is the wired pipeline shared by the commands that talk to the site.
type app struct {
	svc   *service.Service
	cache *cache.Cache
	creds titulky.Credentials
}

func buildApp(cfg *config.Config) (*app, error) {
	client, err := titulky.New(titulky.Config{
		BaseURL:           cfg.Titulky.BaseURL,
		Timeout:           cfg.Titulky.Timeout(),
		RequestsPerSecond: cfg.Titulky.RequestsPerSecond,
		RetryAttempts:     cfg.Titulky.RetryAttempts,
		MaxWait:           cfg.Titulky.MaxWait(),
	})
	if err != nil {
		return nil, err
	}

	store, err := persistence.Open(cfg.Cache.Backend, cfg.Cache.DataDir)
	if err != nil {
		return nil, err
	}
	c := cache.New(store, cache.Config{LocalTTL: cfg.Cache.LocalTTL()})

	svc, err := service.New(client, c, service.WithCloser(store.Close))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &app{svc: svc, cache: c, creds: credentials(cfg)}, nil
}
