package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"bulletin-scraper/internal/document"
)

// Element adapts a rod element. Lookups use querySelector semantics and do
// not wait for nodes to appear: the page has finished loading by the time a
// Document is handed out.
type Element struct {
	el *rod.Element
}

// Document is the <html> element of a rendered page.
type Document struct {
	Element
	url string
}

func (d *Document) URL() string {
	return d.url
}

func (e Element) FindElementByClass(name string) (document.Element, error) {
	return e.first(document.ClassSelector(name), "class "+name)
}

func (e Element) FindElementsByClass(name string) ([]document.Element, error) {
	return e.all(document.ClassSelector(name))
}

func (e Element) FindElementByTag(tag string) (document.Element, error) {
	return e.first(tag, "tag "+tag)
}

func (e Element) FindElementsByTag(tag string) ([]document.Element, error) {
	return e.all(tag)
}

// Attribute returns null-as-absent like getAttribute. For URL-valued
// attributes the DOM property is read instead, which the browser has
// already resolved against the page URL.
func (e Element) Attribute(name string) (string, bool, error) {
	raw, err := e.el.Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("read attribute %s: %w", name, err)
	}
	return attributeValue(name, raw, e.el.Property)
}

// attributeValue falls back to the raw value when the element has no such
// property (href on a <div>) or the property is empty.
func attributeValue(name string, raw *string, property func(string) (gson.JSON, error)) (string, bool, error) {
	if raw == nil {
		return "", false, nil
	}
	if !document.IsURLAttribute(name) {
		return *raw, true, nil
	}

	prop, err := property(name)
	if err != nil {
		return "", false, fmt.Errorf("read property %s: %w", name, err)
	}
	if prop.Nil() || prop.Str() == "" {
		return *raw, true, nil
	}
	return prop.Str(), true, nil
}

func (e Element) first(selector, what string) (document.Element, error) {
	has, found, err := e.el.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	if !has {
		return nil, fmt.Errorf("%s: %w", what, document.ErrNotFound)
	}
	return Element{el: found}, nil
}

func (e Element) all(selector string) ([]document.Element, error) {
	found, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	out := make([]document.Element, 0, len(found))
	for _, el := range found {
		out = append(out, Element{el: el})
	}
	return out, nil
}
