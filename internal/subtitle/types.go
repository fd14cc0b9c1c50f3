package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Format names a subtitle text format by its usual file extension.
type Format string

const (
	FormatAuto     Format = ""
	FormatSRT      Format = "srt"
	FormatASS      Format = "ass"
	FormatSSA      Format = "ssa"
	FormatMicroDVD Format = "sub"
	FormatVTT      Format = "vtt"
	FormatSAMI     Format = "smi"
	FormatText     Format = "txt"
)

// Line is a single timed cue
type Line struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// File is a parsed subtitle
type File struct {
	Path     string
	Lines    []Line
	Language language.Tag
	Format   string // e.g. SRT, VTT
}
