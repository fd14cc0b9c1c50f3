package file

import (
	"path"
	"strings"
)

// ReplaceExt swaps the extension of name for ext, adding one when name has
// none. A leading dot in ext is optional.
func ReplaceExt(name, ext string) string {
	if name == "" {
		return name
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir, base := path.Split(name)
	if lastDot := strings.LastIndex(base, "."); lastDot > 0 {
		base = base[:lastDot]
	}
	return dir + base + ext
}

// SafeName strips directories and characters that do not belong in a
// Content-Disposition file name. An empty result becomes fallback.
func SafeName(name, fallback string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '"', r == '/', r == '\\', r == ';':
			return -1
		default:
			return r
		}
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}
