package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/david325345/stremio-titulky.com-docker/internal/service"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		season   int
		episode  int
		fileName string
	)

	cmd := &cobra.Command{
		Use:   "search NAME [ALIAS...]",
		Short: "Search subtitles for a title and print them ranked",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.cliLogging("warn")
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.svc.Close()

			if err := a.cache.LoadIndex(cmd.Context()); err != nil {
				return err
			}
			results := a.svc.Search(cmd.Context(), a.creds, service.SearchRequest{
				Names:    args,
				Season:   season,
				Episode:  episode,
				FileName: fileName,
			})
			writeResults(cmd.OutOrStdout(), results, isTerminal(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().IntVar(&season, "season", 0, "season number")
	cmd.Flags().IntVar(&episode, "episode", 0, "episode number")
	cmd.Flags().StringVar(&fileName, "file", "", "name of the video file being played, used for ranking")
	return cmd
}

var resultHeaders = []string{"ID", "Token", "Title", "Version", "Lang", "Downloads", "Size", "Score", "Cached"}

func resultRows(results []service.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		size := r.Size
		if r.SizeBytes > 0 {
			size = humanize.Bytes(r.SizeBytes)
		}
		cached := ""
		if r.Cached {
			cached = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.LinkToken,
			r.Title,
			r.Version,
			r.LanguageCode(),
			humanize.Comma(int64(r.Downloads)),
			size,
			strconv.Itoa(r.Score),
			cached,
		})
	}
	return rows
}

// writeResults prints a table on a terminal and tab-separated lines
// otherwise.
func writeResults(w io.Writer, results []service.Result, tty bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No subtitles found.")
		return
	}
	rows := resultRows(results)
	if tty {
		aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
		fmt.Fprintln(w, renderTable(resultHeaders, rows, aligns))
		return
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}
