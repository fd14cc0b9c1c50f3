package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

var cueTimeRe = regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{3})`)

// ReadSRTBytes parses SRT or WebVTT cue text. Cue numbers are optional so the
// output of the converters reads back as well.
func ReadSRTBytes(data []byte, path string) (*File, error) {
	var lines []Line
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	current := Line{}
	state := "index" // possible values: "index", "text"
	var textLines []string
	format := "SRT"

	flush := func() {
		if len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			lines = append(lines, current)
		}
		current = Line{}
		textLines = nil
		state = "index"
	}

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		switch state {
		case "index":
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "WEBVTT") {
				format = "VTT"
				continue
			}
			if index, err := strconv.Atoi(line); err == nil {
				current.Index = index
				continue
			}
			start, end, err := parseCueTime(line)
			if err != nil {
				continue // headers, notes, stray text
			}
			current.StartTime = start
			current.EndTime = end
			if current.Index == 0 {
				current.Index = len(lines) + 1
			}
			state = "text"

		case "text":
			if line == "" {
				flush()
				continue
			}
			textLines = append(textLines, line)
		}
	}
	if state == "text" {
		flush()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle %s: %w", path, err)
	}

	return &File{
		Path:     path,
		Lines:    lines,
		Language: detectLanguage(lines),
		Format:   format,
	}, nil
}

func parseCueTime(s string) (time.Duration, time.Duration, error) {
	m := cueTimeRe.FindStringSubmatch(s)
	if len(m) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", s)
	}
	return clock(m[1], m[2], m[3], m[4]), clock(m[5], m[6], m[7], m[8]), nil
}

func clock(hours, minutes, seconds, millis string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	ms, _ := strconv.Atoi(millis)
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// detectLanguage guesses the language of the cue text as a whole; single
// cues are usually too short to tell.
func detectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(stripMarkup(line.Text))
		sb.WriteByte('\n')
	}

	code := whatlanggo.DetectLang(sb.String()).Iso6391()
	if code == "" {
		return language.Und
	}
	return language.All.Make(code)
}

var markupRe = regexp.MustCompile(`<[^>]*>`)

func stripMarkup(s string) string {
	return markupRe.ReplaceAllString(s, "")
}
