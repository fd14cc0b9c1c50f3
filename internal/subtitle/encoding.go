package subtitle

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}

	// Czech and Slovak letters encoded as UTF-8 and read back one byte per
	// character come out as a lead of Ã, Ä or Å followed by a C1/Latin-1
	// continuation character.
	mojibakeRe = regexp.MustCompile(`[\x{00C3}\x{00C4}\x{00C5}][\x{0080}-\x{00BF}]`)
)

const (
	mojibakeMinRunes = 50
	mojibakePercent  = 2
)

// EnsureUTF8 decodes subtitle bytes to text. A byte-order mark decides the
// encoding when present. Otherwise the bytes are read as UTF-8 unless that
// fails or looks mis-decoded, in which case they are read as Windows-1250.
func EnsureUTF8(data []byte) string {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return strings.ToValidUTF8(string(data[len(utf8BOM):]), "\uFFFD")
	case bytes.HasPrefix(data, utf16LEBOM):
		return decodeUTF16(data, unicode.LittleEndian)
	case bytes.HasPrefix(data, utf16BEBOM):
		return decodeUTF16(data, unicode.BigEndian)
	}

	text := string(data)
	if utf8.Valid(data) && !strings.ContainsRune(text, utf8.RuneError) && !looksMisdecoded(text) {
		return text
	}

	decoded, err := charmap.Windows1250.NewDecoder().Bytes(data)
	if err != nil {
		log.Debug("Windows-1250 decode failed, keeping UTF-8: %v", err)
		return strings.ToValidUTF8(text, "\uFFFD")
	}
	log.Debug("Subtitle text decoded as Windows-1250")
	return string(decoded)
}

func decodeUTF16(data []byte, order unicode.Endianness) string {
	decoded, err := unicode.UTF16(order, unicode.ExpectBOM).NewDecoder().Bytes(data)
	if err != nil {
		log.Debug("UTF-16 decode failed: %v", err)
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(decoded)
}

func looksMisdecoded(text string) bool {
	runes := utf8.RuneCountInString(text)
	if runes <= mojibakeMinRunes {
		return false
	}
	hits := len(mojibakeRe.FindAllStringIndex(text, -1))
	return hits*100 > runes*mojibakePercent
}
