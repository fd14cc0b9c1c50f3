package titulky

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/gabriel-vasile/mimetype"
)

const maxEntrySize = 10 << 20

// SubtitleExtensions are the archive entries worth keeping, in preference
// order for the first slot.
var SubtitleExtensions = []string{".srt", ".sub", ".txt", ".smi", ".ssa", ".ass"}

var zipMagic = []byte("PK\x03\x04")

// ArchiveEntry is one member of an unpacked archive.
type ArchiveEntry struct {
	Name  string
	IsDir bool
	Data  []byte
}

// Unpacker lists the members of an archive payload.
type Unpacker func(data []byte) ([]ArchiveEntry, error)

// Unpack detects the payload type and returns its subtitle files, with .srt
// files first. A payload that is plain text is returned as a single file
// called nameHint.
func Unpack(data []byte, nameHint string) ([]File, error) {
	mt := mimetype.Detect(data)

	var unpack Unpacker
	switch {
	case mt.Is("application/zip") || bytes.HasPrefix(data, zipMagic):
		unpack = UnpackZip
	case mt.Is("application/x-7z-compressed"):
		unpack = Unpack7z
	case isTextPayload(mt):
		return SelectSubtitles([]ArchiveEntry{{Name: nameHint, Data: data}}), nil
	default:
		return nil, fmt.Errorf("unsupported payload type %s", mt.String())
	}

	entries, err := unpack(data)
	if err != nil {
		return nil, err
	}
	return SelectSubtitles(entries), nil
}

// SelectSubtitles drops directories and non-subtitle entries, then moves .srt
// files to the front without disturbing the archive order otherwise.
func SelectSubtitles(entries []ArchiveEntry) []File {
	var files []File
	for _, e := range entries {
		if e.IsDir || !isSubtitleName(e.Name) {
			continue
		}
		files = append(files, File{Name: path.Base(e.Name), Data: e.Data})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return isSRT(files[i].Name) && !isSRT(files[j].Name)
	})
	return files
}

// UnpackZip lists the members of a zip archive.
func UnpackZip(data []byte) ([]ArchiveEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	entries := make([]ArchiveEntry, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			entries = append(entries, ArchiveEntry{Name: f.Name, IsDir: true})
			continue
		}
		if !isSubtitleName(f.Name) {
			entries = append(entries, ArchiveEntry{Name: f.Name})
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		body, err := readEntry(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		entries = append(entries, ArchiveEntry{Name: f.Name, Data: body})
	}
	return entries, nil
}

// Unpack7z lists the members of a 7z archive.
func Unpack7z(data []byte) ([]ArchiveEntry, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open 7z: %w", err)
	}
	entries := make([]ArchiveEntry, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			entries = append(entries, ArchiveEntry{Name: f.Name, IsDir: true})
			continue
		}
		if !isSubtitleName(f.Name) {
			entries = append(entries, ArchiveEntry{Name: f.Name})
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		body, err := readEntry(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		entries = append(entries, ArchiveEntry{Name: f.Name, Data: body})
	}
	return entries, nil
}

func readEntry(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntrySize))
}

func isTextPayload(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") || m.Is("application/x-subrip") {
			return true
		}
	}
	return false
}

func isSubtitleName(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, want := range SubtitleExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

func isSRT(name string) bool {
	return strings.EqualFold(path.Ext(name), ".srt")
}
