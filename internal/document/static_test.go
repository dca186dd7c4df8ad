package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div class="devsite-article">
  <h3 data-text="First">First <a href="#first">link</a></h3>
  <div class="wrap devsite-table-wrapper"><table><tbody>
    <tr><th>h</th></tr>
    <tr><td>a</td><td><a href="/one">1</a><a href="https://other.example/two">2</a></td></tr>
  </tbody></table></div>
  <h3>Second</h3>
</div>
</body></html>`

func TestStaticFindByClass(t *testing.T) {
	doc, err := ParseString(page, "https://source.example/bulletin")
	require.NoError(t, err)

	article, err := doc.FindElementByClass("devsite-article")
	require.NoError(t, err)

	wrappers, err := article.FindElementsByClass("devsite-table-wrapper")
	require.NoError(t, err)
	assert.Len(t, wrappers, 1)

	_, err = doc.FindElementByClass("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	none, err := doc.FindElementsByClass("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStaticFindByTagOrder(t *testing.T) {
	doc, err := ParseString(page, "https://source.example/bulletin")
	require.NoError(t, err)

	headings, err := doc.FindElementsByTag("h3")
	require.NoError(t, err)
	require.Len(t, headings, 2)

	label, ok, err := headings[0].Attribute("data-text")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "First", label)

	_, ok, err = headings[1].Attribute("data-text")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = headings[1].FindElementByTag("table")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStaticResolvesLinks(t *testing.T) {
	doc, err := ParseString(page, "https://source.example/bulletin")
	require.NoError(t, err)

	anchors, err := doc.FindElementsByTag("a")
	require.NoError(t, err)
	require.Len(t, anchors, 3)

	var got []string
	for _, a := range anchors {
		href, ok, err := a.Attribute("href")
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, href)
	}
	assert.Equal(t, []string{
		"https://source.example/bulletin#first",
		"https://source.example/one",
		"https://other.example/two",
	}, got)
}

func TestStaticNormalizesLinksLikeBrowser(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{"empty is the page itself", "", "https://source.example/bulletin"},
		{"space in query", "https://x/?q=a b", "https://x/?q=a%20b"},
		{"quote in query", `https://x/?q="a"`, "https://x/?q=%22a%22"},
		{"host case", "HTTPS://X.example/Up", "https://x.example/Up"},
		{"default port", "https://x.example:443/a", "https://x.example/a"},
		{"explicit port", "http://x.example:8080/a", "http://x.example:8080/a"},
		{"space in path", "/a b", "https://source.example/a%20b"},
		{"internationalized host", "https://bücher.example/", "https://xn--bcher-kva.example/"},
		{"embedded newline", " /o\nne ", "https://source.example/one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseString(`<a href='`+tt.href+`'>x</a>`, "https://source.example/bulletin#top")
			require.NoError(t, err)

			a, err := doc.FindElementByTag("a")
			require.NoError(t, err)
			href, ok, err := a.Attribute("href")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, href)
		})
	}
}

func TestStaticBaseElement(t *testing.T) {
	doc, err := ParseString(`<html><head><base href="https://cdn.example/x/"></head>
<body><a href="y">y</a></body></html>`, "https://source.example/")
	require.NoError(t, err)

	a, err := doc.FindElementByTag("a")
	require.NoError(t, err)
	href, _, err := a.Attribute("href")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x/y", href)
}

func TestStaticWithoutBase(t *testing.T) {
	doc, err := ParseString(`<a href="/rel">r</a>`, "")
	require.NoError(t, err)

	a, err := doc.FindElementByTag("a")
	require.NoError(t, err)
	href, _, err := a.Attribute("href")
	require.NoError(t, err)
	assert.Equal(t, "/rel", href)
}

func TestClassSelector(t *testing.T) {
	assert.Equal(t, ".devsite-article", ClassSelector("devsite-article"))
	assert.Equal(t, `.a\:b`, ClassSelector("a:b"))
	assert.Equal(t, `.\31 x`, ClassSelector("1x"))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bulletin.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	src := NewFileSource()
	defer func() { _ = src.Close() }()

	doc, err := src.Load(context.Background(), path)
	require.NoError(t, err)

	a, err := doc.FindElementByTag("a")
	require.NoError(t, err)
	href, _, err := a.Attribute("href")
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(path)+"#first", href)

	_, err = src.Load(context.Background(), filepath.Join(dir, "nope.html"))
	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}
