package download

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirSource serves release files out of a local directory, typically
// the one FetchAll populated. It satisfies the orchestrator's Source
// interface.
type DirSource struct {
	dir string
}

// NewDirSource builds a source over the directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// List returns the candidate filenames in the directory. Subdirectories
// and dotfiles are ignored.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Open returns the file's record stream. Zip archives are opened in
// place and the first text entry inside is served, since the FDA ships
// each dump as a single-text-file archive.
func (s *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	path := filepath.Join(s.dir, name)
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		return f, nil
	}

	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", name, err)
	}
	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		inner, err := entry.Open()
		if err != nil {
			archive.Close()
			return nil, fmt.Errorf("failed to open %s inside %s: %w", entry.Name, name, err)
		}
		return &archiveEntry{ReadCloser: inner, archive: archive}, nil
	}
	archive.Close()
	return nil, fmt.Errorf("archive %s contains no files", name)
}

// archiveEntry closes the enclosing archive along with the entry.
type archiveEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (e *archiveEntry) Close() error {
	err := e.ReadCloser.Close()
	if cerr := e.archive.Close(); err == nil {
		err = cerr
	}
	return err
}
