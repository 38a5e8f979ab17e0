package pprof

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// Writer stores profiles as <dir>/<type>/<type>_<stamp>.pprof and keeps at
// most maxFiles per type.
type Writer struct {
	mu        sync.Mutex
	outputDir string
	maxFiles  int
	now       func() time.Time
}

// NewWriter creates a new Writer.
func NewWriter(outputDir string, maxFiles int) *Writer {
	return &Writer{outputDir: outputDir, maxFiles: maxFiles, now: time.Now}
}

// Write writes profile data for pt and rotates old files.
func (w *Writer) Write(pt ProfileType, data []byte) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Join(w.outputDir, string(pt))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "create profile directory", err)
	}

	name := fmt.Sprintf("%s_%s.pprof", pt, w.now().Format("20060102_150405.000000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "write profile file", err)
	}

	if err := w.rotate(dir); err != nil {
		return path, err
	}
	return path, nil
}

// rotate removes the oldest files once the count exceeds maxFiles.
// Names embed a sortable timestamp, so lexical order is age order.
func (w *Writer) rotate(dir string) error {
	if w.maxFiles <= 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "list profile directory", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".pprof" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for len(files) > w.maxFiles {
		if err := os.Remove(filepath.Join(dir, files[0])); err != nil {
			return apperrors.Wrap(apperrors.CodeStorageError, "remove old profile "+files[0], err)
		}
		files = files[1:]
	}
	return nil
}

// OutputDir returns the output directory.
func (w *Writer) OutputDir() string {
	return w.outputDir
}

// ListFiles returns all profile files for a given profile type in age order.
func (w *Writer) ListFiles(pt ProfileType) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Join(w.outputDir, string(pt))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "list profile directory", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".pprof" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
