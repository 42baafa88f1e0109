// Package loader turns document files into segments ready for chunking.
//
// Each supported format has its own extraction strategy: PDFs produce one
// segment per page, CSV files one segment per data row, and plain text
// files a single segment. Every segment records the original file name in
// its metadata so answers can cite their source.
package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

// Loader extracts segments from a document file. The source argument is
// the logical name recorded in segment metadata, which may differ from the
// on-disk path for uploads staged to a temp file.
type Loader interface {
	// Load reads the file at path and returns its segments.
	Load(path string, source string) ([]model.Segment, error)

	// Extensions lists the file extensions this loader handles.
	Extensions() []string
}

var loaders = map[string]Loader{}

func register(l Loader) {
	for _, ext := range l.Extensions() {
		loaders[ext] = l
	}
}

func init() {
	register(&PDFLoader{})
	register(&CSVLoader{})
	register(&TextLoader{})
}

// SupportedExtensions lists all registered file extensions.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	return exts
}

// ForFile returns the loader for the file's extension.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	l, ok := loaders[ext]
	if !ok {
		return nil, errors.ErrUnsupportedFormat.WithMessagef("unsupported document format %q", ext)
	}
	return l, nil
}

// LoadFile loads a document from disk. The source metadata is the base
// file name.
func LoadFile(path string) ([]model.Segment, error) {
	l, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	return l.Load(path, filepath.Base(path))
}

// LoadUpload stages an uploaded document to a temporary file and loads it.
// The temp file is always removed, whether or not loading succeeds. The
// source metadata is the original upload file name, never the temp path.
func LoadUpload(r io.Reader, filename string) ([]model.Segment, error) {
	// Reject unsupported formats before touching the disk.
	l, err := ForFile(filename)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "docqa-upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			logger.Warnw("Failed to remove staged upload", "path", tmpPath, "error", err)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to stage upload: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to stage upload: %w", err))
	}

	return l.Load(tmpPath, filename)
}

// LoadDir walks a directory and loads every supported document in it.
// Unsupported files are skipped, not errors.
func LoadDir(dir string) ([]model.Segment, []string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, errors.ErrValidation.WithMessagef("directory %s not accessible", dir)
	}
	if !info.IsDir() {
		return nil, nil, errors.ErrValidation.WithMessagef("%s is not a directory", dir)
	}

	var segments []model.Segment
	var loaded []string

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		l, lerr := ForFile(path)
		if lerr != nil {
			return nil
		}
		segs, lerr := l.Load(path, filepath.Base(path))
		if lerr != nil {
			logger.Warnw("Failed to load document", "path", path, "error", lerr)
			return nil
		}
		segments = append(segments, segs...)
		loaded = append(loaded, filepath.Base(path))
		return nil
	})
	if err != nil {
		return nil, nil, errors.ErrLoadFailed.WithCause(err)
	}

	return segments, loaded, nil
}
