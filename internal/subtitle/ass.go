package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type assSection int

const (
	sectionOther assSection = iota
	sectionStyles
	sectionEvents
)

// Field orders used when a section has no Format line.
var (
	defaultStyleFormat = []string{
		"name", "fontname", "fontsize", "primarycolour", "secondarycolour", "outlinecolour",
		"backcolour", "bold", "italic", "underline", "strikeout", "scalex", "scaley", "spacing",
		"angle", "borderstyle", "outline", "shadow", "alignment", "marginl", "marginr", "marginv", "encoding",
	}
	defaultEventFormat = []string{
		"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text",
	}
)

var (
	assTimeRe     = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})[.,](\d{1,3})$`)
	assBlockRe    = regexp.MustCompile(`\{[^}]*\}`)
	assToggleRe   = regexp.MustCompile(`^([biu])(\d*)$`)
	assColorTagRe = regexp.MustCompile(`^1?c(?:&H([0-9A-Fa-f]+)&?)?$`)
)

type assStyle struct {
	color  string
	bold   bool
	italic bool
}

// ASSToVTT converts Advanced/Sub Station Alpha text to WebVTT. Styles are
// collected first so Dialogue lines can use them wherever the sections
// appear. Cues are written in source order without merging.
func ASSToVTT(text string) string {
	lines := strings.Split(normalizeNewlines(text), "\n")

	styles := make(map[string]assStyle)
	styleFormat := defaultStyleFormat
	scanASS(lines, sectionStyles, func(key, value string) {
		switch key {
		case "format":
			styleFormat = splitFormat(value)
		case "style":
			if name, style, ok := parseASSStyle(styleFormat, value); ok {
				styles[name] = style
			}
		}
	})

	var sb strings.Builder
	sb.WriteString(vttHeader)
	eventFormat := defaultEventFormat
	scanASS(lines, sectionEvents, func(key, value string) {
		switch key {
		case "format":
			eventFormat = splitFormat(value)
		case "dialogue":
			if cue, ok := parseDialogue(eventFormat, value, styles); ok {
				sb.WriteString(cue)
			}
		}
	})
	return sb.String()
}

// scanASS calls fn with the lowercased key and raw value of every
// "Key: value" line inside sections of kind want.
func scanASS(lines []string, want assSection, fn func(key, value string)) {
	section := sectionOther
	for _, raw := range lines {
		line := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			switch strings.ToLower(line) {
			case "[v4+ styles]", "[v4 styles]", "[v4 styles+]":
				section = sectionStyles
			case "[events]":
				section = sectionEvents
			default:
				section = sectionOther
			}
			continue
		}
		if section != want {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fn(strings.ToLower(strings.TrimSpace(key)), strings.TrimLeft(value, " \t"))
	}
}

func splitFormat(value string) []string {
	fields := strings.Split(value, ",")
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return fields
}

// splitFields splits on commas into at most len(format) fields so the last
// field (the dialogue text) keeps its own commas.
func splitFields(format []string, value string) (map[string]string, bool) {
	parts := strings.SplitN(value, ",", len(format))
	if len(parts) < len(format) {
		return nil, false
	}
	fields := make(map[string]string, len(format))
	for i, name := range format {
		if name == "text" {
			fields[name] = parts[i]
			continue
		}
		fields[name] = strings.TrimSpace(parts[i])
	}
	return fields, true
}

func parseASSStyle(format []string, value string) (string, assStyle, bool) {
	fields, ok := splitFields(format, value)
	if !ok || fields["name"] == "" {
		return "", assStyle{}, false
	}
	style := assStyle{
		bold:   assFlag(fields["bold"]),
		italic: assFlag(fields["italic"]),
	}
	if color := assColor(fields["primarycolour"]); color != "ffffff" {
		style.color = color
	}
	return fields["name"], style, true
}

func parseDialogue(format []string, value string, styles map[string]assStyle) (string, bool) {
	fields, ok := splitFields(format, value)
	if !ok {
		return "", false
	}
	start, ok := assTime(fields["start"])
	if !ok {
		return "", false
	}
	end, ok := assTime(fields["end"])
	if !ok {
		return "", false
	}

	text, inline := convertASSText(fields["text"])
	if strings.TrimSpace(stripMarkup(text)) == "" {
		return "", false
	}

	style := styles[fields["style"]]
	if style.italic && !inline.italic {
		text = "<i>" + text + "</i>"
	}
	if style.bold && !inline.bold {
		text = "<b>" + text + "</b>"
	}
	if style.color != "" && !inline.color {
		text = fmt.Sprintf(`<font color="#%s">%s</font>`, style.color, text)
	}

	return start + " --> " + end + "\n" + text + "\n\n", true
}

// assFlag reads a style boolean; ASS writes -1 for true, older SSA files 1.
func assFlag(v string) bool {
	return v == "-1" || v == "1"
}

// assColor turns &HAABBGGRR (or a decimal BGR value) into rrggbb. The alpha
// byte is ignored.
func assColor(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	var hex string
	if upper := strings.ToUpper(v); strings.HasPrefix(upper, "&H") {
		hex = strings.TrimSuffix(v[2:], "&")
	} else {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return ""
		}
		hex = strconv.FormatUint(n, 16)
	}
	if _, err := strconv.ParseUint(hex, 16, 64); err != nil || len(hex) > 8 {
		return ""
	}
	hex = strings.ToLower(strings.Repeat("0", 8-len(hex)) + hex)
	return hex[6:8] + hex[4:6] + hex[2:4]
}

// assTime converts H:MM:SS.CC to HH:MM:SS.mmm.
func assTime(v string) (string, bool) {
	m := assTimeRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	frac := m[4]
	ms, _ := strconv.Atoi(frac + strings.Repeat("0", 3-len(frac)))
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, minutes, sec, ms), true
}

type inlineOverrides struct {
	bold   bool
	italic bool
	color  bool
}

type openElement struct {
	tag    string
	markup string
}

// convertASSText turns override blocks into WebVTT markup. Bold, italic,
// underline and primary colour are kept; every other override is dropped.
// Closing an outer tag closes and reopens the ones nested inside it, and
// tags still open at the end of the line are closed.
func convertASSText(text string) (string, inlineOverrides) {
	var used inlineOverrides
	var open []openElement
	var sb strings.Builder

	closeTag := func(tag string) {
		for i := len(open) - 1; i >= 0; i-- {
			if open[i].tag != tag {
				continue
			}
			for j := len(open) - 1; j >= i; j-- {
				sb.WriteString("</" + open[j].tag + ">")
			}
			inner := append([]openElement(nil), open[i+1:]...)
			open = open[:i]
			for _, e := range inner {
				sb.WriteString(e.markup)
				open = append(open, e)
			}
			return
		}
	}
	openTag := func(tag, markup string) {
		sb.WriteString(markup)
		open = append(open, openElement{tag: tag, markup: markup})
	}
	isOpen := func(tag string) bool {
		for _, e := range open {
			if e.tag == tag {
				return true
			}
		}
		return false
	}

	last := 0
	for _, loc := range assBlockRe.FindAllStringIndex(text, -1) {
		sb.WriteString(assPlainText(text[last:loc[0]]))
		last = loc[1]

		for _, tag := range strings.Split(text[loc[0]+1:loc[1]-1], `\`) {
			tag = strings.TrimSpace(tag)
			if m := assToggleRe.FindStringSubmatch(tag); m != nil {
				name := m[1]
				on := m[2] != "" && m[2] != "0"
				switch name {
				case "b":
					used.bold = true
				case "i":
					used.italic = true
				}
				if on && !isOpen(name) {
					openTag(name, "<"+name+">")
				} else if !on {
					closeTag(name)
				}
				continue
			}
			if m := assColorTagRe.FindStringSubmatch(tag); m != nil {
				used.color = true
				closeTag("font")
				if m[1] != "" {
					if color := assColor("&H" + m[1]); color != "" {
						openTag("font", fmt.Sprintf(`<font color="#%s">`, color))
					}
				}
			}
		}
	}
	sb.WriteString(assPlainText(text[last:]))

	for i := len(open) - 1; i >= 0; i-- {
		sb.WriteString("</" + open[i].tag + ">")
	}
	return dropEmptyLines(sb.String()), used
}

// dropEmptyLines removes blank lines from cue text; a blank line would end
// the cue early.
func dropEmptyLines(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func assPlainText(s string) string {
	s = strings.ReplaceAll(s, `\N`, "\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	return strings.ReplaceAll(s, `\h`, " ")
}
