package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"
)

const vttHeader = "WEBVTT\n\n"

// WriteVTT writes f as WebVTT cues, one blank line after each.
func WriteVTT(w io.Writer, f *File) error {
	if f == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(vttHeader); err != nil {
		return err
	}
	for _, line := range f.Lines {
		if _, err := fmt.Fprintf(bw, "%s --> %s\n%s\n\n",
			formatDuration(line.StartTime, '.'), formatDuration(line.EndTime, '.'), line.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSRT writes f as numbered SRT cues.
func WriteSRT(w io.Writer, f *File) error {
	if f == nil {
		return fmt.Errorf("subtitle data is empty")
	}

	bw := bufio.NewWriter(w)
	for i, line := range f.Lines {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, formatDuration(line.StartTime, ','), formatDuration(line.EndTime, ','), line.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// VTTToSRT renders cue text (WebVTT or SRT) as SRT for players that do not
// read WebVTT.
func VTTToSRT(text string) (string, error) {
	f, err := ReadSRTBytes([]byte(text), "")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := WriteSRT(&buf, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatDuration formats d as HH:MM:SS<sep>mmm.
func formatDuration(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, milliseconds)
}
