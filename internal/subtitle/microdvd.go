package subtitle

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMicroDVDFPS = 23.976
	// fallbackCueFrames is used when a cue has no end frame.
	fallbackCueFrames = 72
)

var (
	microDVDLineRe  = regexp.MustCompile(`^\{(\d+)\}\{(\d*)\}(.*)$`)
	microDVDStyleRe = regexp.MustCompile(`\{[^}]*\}`)
)

// MicroDVDToVTT converts frame-based MicroDVD text to WebVTT. A leading
// {1}{1}<fps> line sets the frame rate; otherwise 23.976 is assumed.
func MicroDVDToVTT(text string) string {
	fps := defaultMicroDVDFPS
	var lines []Line

	for i, raw := range strings.Split(normalizeNewlines(text), "\n") {
		m := microDVDLineRe.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			continue
		}
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])

		if len(lines) == 0 && i < 2 && start <= 1 && end <= 1 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(m[3]), 64); err == nil && v > 0 {
				fps = v
				continue
			}
		}
		if end <= start {
			end = start + fallbackCueFrames
		}

		body, italic := microDVDText(m[3])
		if strings.TrimSpace(body) == "" {
			continue
		}
		if italic {
			body = "<i>" + body + "</i>"
		}
		lines = append(lines, Line{
			Index:     len(lines) + 1,
			StartTime: frameTime(start, fps),
			EndTime:   frameTime(end, fps),
			Text:      body,
		})
	}

	var buf bytes.Buffer
	if err := WriteVTT(&buf, &File{Lines: lines, Format: "VTT"}); err != nil {
		return vttHeader
	}
	return buf.String()
}

func microDVDText(s string) (string, bool) {
	italic := strings.Contains(strings.ToLower(s), "{y:i}")
	s = microDVDStyleRe.ReplaceAllString(s, "")
	parts := strings.Split(s, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(strings.TrimPrefix(p, "/"))
	}
	return strings.Join(parts, "\n"), italic
}

func frameTime(frame int, fps float64) time.Duration {
	return time.Duration(math.Round(float64(frame)/fps*1000)) * time.Millisecond
}
