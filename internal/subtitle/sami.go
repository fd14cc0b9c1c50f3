package subtitle

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// samiLastCue is the length given to the final SYNC block, which has no
// successor to end it.
const samiLastCue = 4 * time.Second

var cueTextEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// SAMIToVTT converts SAMI (.smi) markup to WebVTT. Each SYNC block runs until
// the next one starts; blocks holding only whitespace or &nbsp; clear the
// screen and produce no cue. Bold, italic and underline are kept, <br> becomes
// a line break and all other markup is dropped.
func SAMIToVTT(text string) string {
	var (
		lines []Line
		cue   strings.Builder
		start time.Duration
		inCue bool
	)
	flush := func(end time.Duration) {
		if !inCue {
			return
		}
		if end <= start {
			end = start + samiLastCue
		}
		if content := samiCueText(cue.String()); content != "" {
			lines = append(lines, Line{Index: len(lines) + 1, StartTime: start, EndTime: end, Text: content})
		}
		cue.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "sync":
				at, ok := samiStart(z, hasAttr)
				if !ok {
					continue
				}
				flush(at)
				start, inCue = at, true
			case "br":
				cue.WriteString("\n")
			case "b", "i", "u":
				if inCue {
					cue.WriteString("<" + string(name) + ">")
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "b", "i", "u":
				if inCue {
					cue.WriteString("</" + string(name) + ">")
				}
			case "body", "sami":
				flush(start)
				inCue = false
			}
		case html.TextToken:
			if inCue {
				cue.WriteString(cueTextEscaper.Replace(string(z.Text())))
			}
		}
	}
	flush(start)

	var buf bytes.Buffer
	if err := WriteVTT(&buf, &File{Lines: lines, Format: "VTT"}); err != nil {
		return vttHeader
	}
	return buf.String()
}

func samiStart(z *html.Tokenizer, hasAttr bool) (time.Duration, bool) {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) != "start" {
			continue
		}
		digits := strings.TrimSpace(string(val))
		if i := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
			digits = digits[:i]
		}
		ms, err := strconv.Atoi(digits)
		if err != nil {
			return 0, false
		}
		return time.Duration(ms) * time.Millisecond, true
	}
	return 0, false
}

// samiCueText collapses source whitespace (including &nbsp;) and drops empty
// lines. A block with no visible text yields "".
func samiCueText(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	joined := strings.Join(out, "\n")
	if strings.TrimSpace(stripMarkup(joined)) == "" {
		return ""
	}
	return joined
}
