package document

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/idna"
)

// Static is a Document parsed from HTML with goquery. It sees the markup as
// served; no scripts run.
type Static struct {
	root *goquery.Selection
	base *url.URL
	raw  string
}

type staticElement struct {
	sel *goquery.Selection
	doc *Static
}

// Parse builds a Static document. baseURL may be empty, in which case
// URL-valued attributes are returned as written. A <base href> in the
// markup takes precedence, as in a browser.
func Parse(r io.Reader, baseURL string) (*Static, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc := &Static{root: gq.Selection, raw: baseURL}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
		}
		doc.base = u
	}
	if href, ok := gq.Find("base[href]").First().Attr("href"); ok {
		if u, err := doc.resolve(href); err == nil {
			doc.base = u
		}
	}
	return doc, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(html, baseURL string) (*Static, error) {
	return Parse(strings.NewReader(html), baseURL)
}

func (d *Static) URL() string {
	return d.raw
}

func (d *Static) FindElementByClass(name string) (Element, error) {
	return (&staticElement{sel: d.root, doc: d}).FindElementByClass(name)
}

func (d *Static) FindElementsByClass(name string) ([]Element, error) {
	return (&staticElement{sel: d.root, doc: d}).FindElementsByClass(name)
}

func (d *Static) FindElementByTag(tag string) (Element, error) {
	return (&staticElement{sel: d.root, doc: d}).FindElementByTag(tag)
}

func (d *Static) FindElementsByTag(tag string) ([]Element, error) {
	return (&staticElement{sel: d.root, doc: d}).FindElementsByTag(tag)
}

func (d *Static) Attribute(name string) (string, bool, error) {
	return "", false, nil
}

var stripTabsAndNewlines = strings.NewReplacer("\t", "", "\n", "", "\r", "")

// resolve turns an attribute value into the URL a browser would report for
// it: relative references resolve against the base, an empty reference is the
// base itself without its fragment, and the result is normalized.
func (d *Static) resolve(ref string) (*url.URL, error) {
	ref = stripTabsAndNewlines.Replace(strings.TrimSpace(ref))
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if d.base != nil {
		u = d.base.ResolveReference(u)
		if ref == "" {
			u.Fragment, u.RawFragment = "", ""
		}
	}
	return normalizeURL(u), nil
}

// normalizeURL lowercases the host (punycoding internationalized names),
// drops a default port and percent-escapes query bytes that a browser would
// not leave bare. Path escaping happens in url.URL.String.
func normalizeURL(u *url.URL) *url.URL {
	if u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if !strings.Contains(host, ":") {
			if ascii, err := idna.Lookup.ToASCII(host); err == nil {
				host = ascii
			}
		} else {
			host = "[" + host + "]"
		}
		port := u.Port()
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			port = ""
		}
		if port != "" {
			host += ":" + port
		}
		u.Host = host
	}
	u.RawQuery = escapeQuery(u.RawQuery, u.Scheme == "http" || u.Scheme == "https")
	return u
}

func escapeQuery(q string, special bool) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		c := q[i]
		if c <= ' ' || c >= 0x7f || c == '"' || c == '<' || c == '>' || (special && c == '\'') {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (e *staticElement) FindElementByClass(name string) (Element, error) {
	return e.first(ClassSelector(name), "class "+name)
}

func (e *staticElement) FindElementsByClass(name string) ([]Element, error) {
	return e.all(ClassSelector(name)), nil
}

func (e *staticElement) FindElementByTag(tag string) (Element, error) {
	return e.first(tag, "tag "+tag)
}

func (e *staticElement) FindElementsByTag(tag string) ([]Element, error) {
	return e.all(tag), nil
}

func (e *staticElement) Attribute(name string) (string, bool, error) {
	val, ok := e.sel.Attr(name)
	if !ok {
		return "", false, nil
	}
	if !IsURLAttribute(name) {
		return val, true, nil
	}
	u, err := e.doc.resolve(val)
	if err != nil {
		// browsers hand back the raw value when it cannot be resolved
		return val, true, nil
	}
	return u.String(), true, nil
}

func (e *staticElement) first(selector, what string) (Element, error) {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return &staticElement{sel: found, doc: e.doc}, nil
}

func (e *staticElement) all(selector string) []Element {
	found := e.sel.Find(selector)
	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &staticElement{sel: s, doc: e.doc})
	})
	return out
}

// ClassSelector returns a CSS selector for a single class token, escaped so
// that names containing CSS punctuation still match literally.
func ClassSelector(name string) string {
	var b strings.Builder
	b.WriteByte('.')
	for i, r := range name {
		switch {
		case r == '-' || r == '_' || r >= 0x80,
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				fmt.Fprintf(&b, "\\%x ", r)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
