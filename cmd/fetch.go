package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/david325345/stremio-titulky.com-docker/internal/service"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir string
		srt    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch ID TOKEN",
		Short: "Download one subtitle and write it as WebVTT (or SRT)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.cliLogging("info")
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.svc.Close()

			format := service.OutputVTT
			if srt {
				format = service.OutputSRT
			}
			sub := a.svc.ServeSubtitle(cmd.Context(), a.creds, args[0], args[1], format)
			if sub.Limited {
				return fmt.Errorf("subtitle %s not available: download limit reached", args[0])
			}

			target := filepath.Join(outDir, sub.FileName)
			if err := os.WriteFile(target, []byte(sub.Content), 0o644); err != nil {
				return fmt.Errorf("write subtitle: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "directory to write the subtitle to")
	cmd.Flags().BoolVar(&srt, "srt", false, "write SRT instead of WebVTT")
	return cmd
}
