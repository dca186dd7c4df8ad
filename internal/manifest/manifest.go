// Package manifest renders extracted sections as text and delivers the
// result to one or more sinks.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"

	"bulletin-scraper/internal/scraper"
)

// Format renders sections as "label:" lines followed by one link per line
// and a blank line after each section, including the last.
func Format(sections []scraper.Section) []byte {
	var buf bytes.Buffer
	for _, s := range sections {
		buf.WriteString(s.Label)
		buf.WriteString(":\n")
		for _, link := range s.Links {
			buf.WriteString(string(link))
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Sink receives a complete manifest.
type Sink interface {
	Name() string
	Write(data []byte) error
}

// Write hands the same bytes to every sink in order and stops at the first
// failure.
func Write(data []byte, sinks ...Sink) error {
	for _, s := range sinks {
		if err := s.Write(data); err != nil {
			return fmt.Errorf("write manifest to %s: %w", s.Name(), err)
		}
	}
	return nil
}

// FileSink replaces Path atomically: the manifest is written to a temporary
// file in the same directory, synced, then renamed over the target. An
// existing target keeps its mode; a new one is created with Perm.
type FileSink struct {
	Path string
	Perm os.FileMode
}

func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path, Perm: 0o644}
}

func (s *FileSink) Name() string {
	return s.Path
}

func (s *FileSink) Write(data []byte) error {
	_, statErr := os.Stat(s.Path)
	created := errors.Is(statErr, fs.ErrNotExist)

	if err := atomic.WriteFile(s.Path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("replace %s: %w", s.Path, err)
	}
	if created {
		if err := os.Chmod(s.Path, s.Perm); err != nil {
			return fmt.Errorf("chmod %s: %w", s.Path, err)
		}
	}
	return nil
}

// ConsoleSink mirrors the manifest to an interactive stream.
type ConsoleSink struct {
	Out io.Writer
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{Out: out}
}

func (s *ConsoleSink) Name() string {
	return "console"
}

func (s *ConsoleSink) Write(data []byte) error {
	_, err := s.Out.Write(data)
	return err
}
