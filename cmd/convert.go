package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/david325345/stremio-titulky.com-docker/internal/subtitle"
	"github.com/david325345/stremio-titulky.com-docker/pkg/file"
)

// convert works on local files only and needs no configuration.
func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a local SRT, ASS/SSA, MicroDVD, SAMI or VTT file to WebVTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.cliLogging("warn")
			return convertFile(cmd.OutOrStdout(), args[0], output, subtitle.Format(strings.ToLower(format)))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file; "-" for stdout (default: input with .vtt)`)
	cmd.Flags().StringVarP(&format, "format", "f", "", "source format (srt, ass, ssa, sub, smi, vtt); detected when empty")
	return cmd
}

func convertFile(stdout io.Writer, input, output string, format subtitle.Format) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read subtitle: %w", err)
	}
	if format == subtitle.FormatAuto {
		format = subtitle.FormatFromName(input)
	}
	vtt := subtitle.ConvertToCueFormat(data, format)

	if output == "-" {
		_, err := io.WriteString(stdout, vtt)
		return err
	}
	if output == "" {
		output = file.ReplaceExt(input, ".vtt")
		if output == input {
			output = input + ".vtt"
		}
	}
	if err := os.WriteFile(output, []byte(vtt), 0o644); err != nil {
		return fmt.Errorf("write subtitle: %w", err)
	}
	fmt.Fprintln(stdout, output)
	return nil
}
