package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load opens a recording file and dispatches on its extension. The recording
// name is the file's base name without the extension.
func Load(path string) (*Recording, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".edf":
		return ReadEDF(f, name)
	case ".fit":
		return ReadFIT(f, name)
	default:
		return nil, fmt.Errorf("unsupported recording extension %q", filepath.Ext(path))
	}
}
