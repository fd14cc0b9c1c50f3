package subtitle

import (
	"path/filepath"
	"regexp"
	"strings"
)

var microDVDProbeRe = regexp.MustCompile(`^\{\d+\}\{\d*\}`)

// FormatFromName guesses the format from a file extension. Extensions shared
// by several formats (.txt, .sub) return the ambiguous value and are settled
// by DetectFormat.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".srt":
		return FormatSRT
	case ".ass":
		return FormatASS
	case ".ssa":
		return FormatSSA
	case ".vtt":
		return FormatVTT
	case ".sub":
		return FormatMicroDVD
	case ".smi", ".sami":
		return FormatSAMI
	default:
		return FormatAuto
	}
}

// DetectFormat sniffs decoded subtitle text.
func DetectFormat(text string) Format {
	trimmed := strings.TrimLeft(strings.TrimPrefix(text, "\ufeff"), " \t\r\n")
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(trimmed, "WEBVTT"):
		return FormatVTT
	case strings.HasPrefix(lower, "<sami"), strings.Contains(lower, "<sync "):
		return FormatSAMI
	case strings.HasPrefix(trimmed, "[Script Info]"),
		strings.Contains(text, "\nDialogue:"),
		strings.Contains(text, "[Events]"):
		return FormatASS
	case microDVDProbeRe.MatchString(trimmed):
		return FormatMicroDVD
	default:
		return FormatSRT
	}
}

// ConvertToCueFormat decodes subtitle bytes and converts them to WebVTT.
// An empty, .txt, .sub or .smi format is resolved by looking at the content.
func ConvertToCueFormat(data []byte, format Format) string {
	return ConvertText(EnsureUTF8(data), format)
}

// ConvertText converts already decoded subtitle text to WebVTT.
func ConvertText(text string, format Format) string {
	if DetectFormat(text) == FormatVTT {
		return VTTPassthrough(text)
	}
	switch format {
	case FormatAuto, FormatText, FormatMicroDVD, FormatSAMI:
		format = DetectFormat(text)
	}

	switch format {
	case FormatVTT:
		return VTTPassthrough(text)
	case FormatASS, FormatSSA:
		return ASSToVTT(text)
	case FormatMicroDVD:
		return MicroDVDToVTT(text)
	case FormatSAMI:
		return SAMIToVTT(text)
	default:
		return SRTToVTT(text)
	}
}
