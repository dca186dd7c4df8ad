package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulletin-scraper/internal/checksum"
	"bulletin-scraper/internal/config"
	"bulletin-scraper/internal/document"
	"bulletin-scraper/internal/manifest"
	"bulletin-scraper/internal/observability"
	"bulletin-scraper/internal/scraper"
)

const bulletin = `<html><body><div class="devsite-article">
<h3 data-text="Section A">Section A</h3>
<div class="devsite-table-wrapper"><table><tbody>
<tr><th>CVE</th><th>References</th></tr>
<tr><td>CVE-1</td><td><a href="https://x/1">A-1</a><a href="https://x/1#asterisk">*</a></td></tr>
<tr><td>CVE-2</td><td><a href="https://x/2">A-2</a></td></tr>
</tbody></table></div>
<div class="devsite-table-wrapper"><table><tbody>
<tr><th>CVE</th><th>References</th></tr>
<tr><td>CVE-3</td><td>none</td></tr>
</tbody></table></div>
</div></body></html>`

type stubSource struct {
	doc     document.Document
	err     error
	closed  int
	loadURL string
}

func (s *stubSource) Load(ctx context.Context, url string) (document.Document, error) {
	s.loadURL = url
	if s.err != nil {
		return nil, &document.FetchError{URL: url, Err: s.err}
	}
	return s.doc, nil
}

func (s *stubSource) Close() error {
	s.closed++
	return nil
}

func factory(src document.Source) SourceFactory {
	return func(context.Context) (document.Source, error) { return src, nil }
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Source.Kind = config.SourceFile
	return cfg
}

func TestRunWritesManifest(t *testing.T) {
	doc, err := document.ParseString(bulletin, "https://source.example/bulletin")
	require.NoError(t, err)
	src := &stubSource{doc: doc}

	path := filepath.Join(t.TempDir(), "commits.txt")
	var console bytes.Buffer

	o := NewOrchestrator(testConfig(), observability.NewNop(), factory(src),
		manifest.NewFileSink(path), manifest.NewConsoleSink(&console))

	stats, err := o.Run(context.Background(), "https://source.example/bulletin")
	require.NoError(t, err)

	want := "Section A:\nhttps://x/1\nhttps://x/2\n\nNo title:\n\n"
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
	assert.Equal(t, want, console.String())

	assert.Equal(t, 2, stats.Sections)
	assert.Equal(t, 2, stats.Links)
	assert.Equal(t, 1, stats.EmptySections)
	assert.Equal(t, 1, stats.Untitled)
	assert.Equal(t, checksum.NewGenerator().ManifestHash([]byte(want)), stats.Checksum)
	assert.Equal(t, 1, src.closed)
}

func TestRunIsIdempotent(t *testing.T) {
	doc, err := document.ParseString(bulletin, "")
	require.NoError(t, err)

	var first, second bytes.Buffer
	o1 := NewOrchestrator(testConfig(), observability.NewNop(), factory(&stubSource{doc: doc}), manifest.NewConsoleSink(&first))
	o2 := NewOrchestrator(testConfig(), observability.NewNop(), factory(&stubSource{doc: doc}), manifest.NewConsoleSink(&second))

	s1, err := o1.Run(context.Background(), "u")
	require.NoError(t, err)
	s2, err := o2.Run(context.Background(), "u")
	require.NoError(t, err)

	assert.Equal(t, first.Bytes(), second.Bytes())
	assert.Equal(t, s1.Checksum, s2.Checksum)
}

func TestRunStructureErrorWritesNothing(t *testing.T) {
	doc, err := document.ParseString(`<html><body><p>not a bulletin</p></body></html>`, "")
	require.NoError(t, err)
	src := &stubSource{doc: doc}

	dir := t.TempDir()
	path := filepath.Join(dir, "commits.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))
	var console bytes.Buffer

	o := NewOrchestrator(testConfig(), observability.NewNop(), factory(src),
		manifest.NewFileSink(path), manifest.NewConsoleSink(&console))

	_, err = o.Run(context.Background(), "u")
	var se *scraper.StructureError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, document.ErrNotFound))
	assert.Equal(t, 4, ExitCode(err))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(got))
	assert.Zero(t, console.Len())
	assert.Equal(t, 1, src.closed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunFetchError(t *testing.T) {
	src := &stubSource{err: errors.New("navigation failed")}
	var console bytes.Buffer

	o := NewOrchestrator(testConfig(), observability.NewNop(), factory(src), manifest.NewConsoleSink(&console))

	_, err := o.Run(context.Background(), "https://unreachable.example")
	var fe *document.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "https://unreachable.example", fe.URL)
	assert.Equal(t, 3, ExitCode(err))
	assert.Zero(t, console.Len())
	assert.Equal(t, 1, src.closed)
}

func TestRunSourceOpenFailure(t *testing.T) {
	open := func(context.Context) (document.Source, error) { return nil, errors.New("no browser") }
	o := NewOrchestrator(testConfig(), observability.NewNop(), open)

	_, err := o.Run(context.Background(), "https://x")
	var fe *document.FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestRunWithFileSource(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "bulletin.html")
	require.NoError(t, os.WriteFile(page, []byte(bulletin), 0o644))
	out := filepath.Join(dir, "commits.txt")

	cfg := testConfig()
	o := NewOrchestrator(cfg, observability.NewNop(), NewSourceFactory(cfg, observability.NewNop()), manifest.NewFileSink(out))

	_, err := o.Run(context.Background(), page)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Section A:\nhttps://x/1\nhttps://x/2\n\nNo title:\n\n", string(got))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("other")))
}
