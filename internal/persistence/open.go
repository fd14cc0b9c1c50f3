package persistence

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	BackendSQLite = "sqlite"
	BackendFS     = "fs"
)

// Open creates the durable store for backend inside dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, "subtitles.db"))
	case BackendFS:
		return NewFSStore(afero.NewOsFs(), filepath.Join(dataDir, "objects"))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
