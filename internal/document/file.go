package document

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileSource loads saved pages from disk. The target may be a plain path or
// a file:// URL; relative links resolve against the file URL like a browser
// opening the file would.
type FileSource struct{}

func NewFileSource() *FileSource {
	return &FileSource{}
}

func (s *FileSource) Load(ctx context.Context, target string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}

	path, err := filePath(target)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer func() { _ = f.Close() }()

	base := (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
	doc, err := Parse(f, base)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	return doc, nil
}

func (s *FileSource) Close() error {
	return nil
}

func filePath(target string) (string, error) {
	if !strings.HasPrefix(target, "file:") {
		return filepath.Abs(target)
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid file URL: %w", err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file URL has no path: %s", target)
	}
	return filepath.FromSlash(u.Path), nil
}
