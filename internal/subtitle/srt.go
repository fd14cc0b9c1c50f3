package subtitle

import (
	"regexp"
	"strings"
)

var srtTimestampRe = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),(\d{3})`)

// SRTToVTT rewrites SRT text as WebVTT. Only line endings and the timestamp
// decimal separator change; cue numbers and text pass through as they are.
func SRTToVTT(text string) string {
	text = strings.TrimPrefix(normalizeNewlines(text), "\ufeff")
	return vttHeader + srtTimestampRe.ReplaceAllString(text, "${1}.${2}")
}

// VTTPassthrough normalizes line endings of text that is already WebVTT.
func VTTPassthrough(text string) string {
	return strings.TrimPrefix(normalizeNewlines(text), "\ufeff")
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
