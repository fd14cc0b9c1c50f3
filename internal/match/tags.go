package match

import (
	"sort"
	"strings"
)

type Category int

const (
	Resolution Category = iota
	Source
	Codec
	Audio
	Edition
)

func (c Category) String() string {
	switch c {
	case Resolution:
		return "resolution"
	case Source:
		return "source"
	case Codec:
		return "codec"
	case Audio:
		return "audio"
	case Edition:
		return "edition"
	default:
		return "unknown"
	}
}

type vocabEntry struct {
	tag      string
	category Category
	phrases  []string
}

// vocabulary is matched in order and a matched phrase is consumed, so the
// more specific spellings ("web dl") must come before the generic ones
// ("web").
var vocabulary = []vocabEntry{
	{"2160p", Resolution, []string{"2160p", "4k", "uhd"}},
	{"1080p", Resolution, []string{"1080p", "1080i", "fhd"}},
	{"720p", Resolution, []string{"720p"}},
	{"576p", Resolution, []string{"576p"}},
	{"480p", Resolution, []string{"480p"}},

	{"remux", Source, []string{"bdremux", "remux"}},
	{"bluray", Source, []string{"blu ray", "bluray", "bdrip", "brrip", "bd"}},
	{"webdl", Source, []string{"web dl", "webdl"}},
	{"webrip", Source, []string{"web rip", "webrip"}},
	{"web", Source, []string{"web"}},
	{"hdtv", Source, []string{"hdtv", "pdtv"}},
	{"hdrip", Source, []string{"hdrip"}},
	{"dvdrip", Source, []string{"dvd rip", "dvdrip"}},
	{"dvd", Source, []string{"dvd5", "dvd9", "dvdscr", "dvd"}},
	{"telesync", Source, []string{"telesync", "hdts", "ts"}},
	{"cam", Source, []string{"hdcam", "camrip", "cam"}},

	{"x265", Codec, []string{"x265", "h265", "h 265", "hevc"}},
	{"x264", Codec, []string{"x264", "h264", "h 264", "avc"}},
	{"xvid", Codec, []string{"xvid", "divx"}},
	{"av1", Codec, []string{"av1"}},

	{"atmos", Audio, []string{"atmos"}},
	{"truehd", Audio, []string{"truehd"}},
	{"dts", Audio, []string{"dts hd", "dts"}},
	{"eac3", Audio, []string{"ddp", "eac3"}},
	{"ac3", Audio, []string{"ac3", "dd"}},
	{"aac", Audio, []string{"aac"}},
	{"flac", Audio, []string{"flac"}},

	{"extended", Edition, []string{"extended"}},
	{"directors", Edition, []string{"directors cut", "director s cut"}},
	{"unrated", Edition, []string{"unrated"}},
	{"remastered", Edition, []string{"remastered"}},
	{"imax", Edition, []string{"imax"}},
	{"proper", Edition, []string{"proper"}},
	{"repack", Edition, []string{"repack"}},
}

// Tags is a set of canonical release tags.
type Tags map[string]Category

// ExtractTags finds the release tags named in a free-text label such as a
// file name or a subtitle version string.
func ExtractTags(label string) Tags {
	tags := make(Tags)
	text := " " + Normalize(label) + " "
	if strings.TrimSpace(text) == "" {
		return tags
	}
	for _, entry := range vocabulary {
		for _, phrase := range entry.phrases {
			needle := " " + phrase + " "
			if !strings.Contains(text, needle) {
				continue
			}
			tags[entry.tag] = entry.category
			text = strings.ReplaceAll(text, needle, " ")
		}
	}
	return tags
}

func (t Tags) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

// Names returns the tags sorted alphabetically.
func (t Tags) Names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
