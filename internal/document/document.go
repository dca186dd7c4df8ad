// Package document defines the read-only query surface the extractor runs
// against, and the sources that produce it.
package document

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by single-element lookups that match nothing.
var ErrNotFound = errors.New("element not found")

// Element is a read-only view of one node. All finds search descendants
// and return matches in document order.
type Element interface {
	FindElementByClass(name string) (Element, error)
	FindElementsByClass(name string) ([]Element, error)
	FindElementByTag(tag string) (Element, error)
	FindElementsByTag(tag string) ([]Element, error)

	// Attribute reports the named attribute. URL-valued attributes (href,
	// src) are resolved against the document URL, the way a browser reports
	// them. ok is false when the attribute is absent.
	Attribute(name string) (value string, ok bool, err error)
}

// Document is the root of a rendered page.
type Document interface {
	Element
	URL() string
}

// Source produces rendered documents. Close releases whatever the source
// holds (browser process, idle connections) and must be safe to call once
// after any Load outcome.
type Source interface {
	Load(ctx context.Context, url string) (Document, error)
	Close() error
}

// FetchError reports that a source could not produce a document.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsURLAttribute reports whether attribute values are link targets that a
// browser resolves against the page URL.
func IsURLAttribute(name string) bool {
	switch name {
	case "href", "src", "action", "cite", "poster":
		return true
	}
	return false
}
