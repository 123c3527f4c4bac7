// Package workspace manages the request-scoped scratch directory that holds
// the downloaded archive, the extracted originals and the processed outputs.
// A workspace belongs to exactly one request and is removed on every exit
// path of that request's handling.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

type Workspace struct {
	root string
}

func New() (*Workspace, error) {
	root, err := os.MkdirTemp("", "idiphotos-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	w := &Workspace{root: root}
	for _, dir := range []string{w.ExtractDir(), w.OutputDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = os.RemoveAll(root)
			return nil, fmt.Errorf("create scratch subdir: %w", err)
		}
	}
	return w, nil
}

func (w *Workspace) Root() string { return w.root }

// ArchivePath is where the downloaded vendor ZIP lands.
func (w *Workspace) ArchivePath() string { return filepath.Join(w.root, "photos.zip") }

// ExtractDir holds the originals unpacked from the vendor ZIP.
func (w *Workspace) ExtractDir() string { return filepath.Join(w.root, "extracted") }

// OutputDir holds the processed photos.
func (w *Workspace) OutputDir() string { return filepath.Join(w.root, "cleaned") }

// Close erases the workspace recursively. Safe to call more than once.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.root)
}
