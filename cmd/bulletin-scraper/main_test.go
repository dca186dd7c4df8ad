package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body><div class="devsite-article">
<h3 data-text="Section A">Section A</h3>
<div class="devsite-table-wrapper"><table><tbody>
<tr><th>CVE</th><th>References</th></tr>
<tr><td>CVE-1</td><td><a href="https://x/1">1</a><a href="https://x/1#asterisk">*</a></td></tr>
<tr><td>CVE-2</td><td><a href="https://x/2">2</a></td></tr>
</tbody></table></div></div></body></html>`

func setup(t *testing.T) (dir, pagePath, configPath string) {
	t.Helper()
	dir = t.TempDir()
	pagePath = filepath.Join(dir, "bulletin.html")
	require.NoError(t, os.WriteFile(pagePath, []byte(page), 0o644))
	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("source:\n  kind: file\n"), 0o644))
	return dir, pagePath, configPath
}

func TestExecuteWithArgument(t *testing.T) {
	dir, pagePath, configPath := setup(t)
	out := filepath.Join(dir, "commits.txt")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--config", configPath, "--output", out, pagePath}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	want := "Section A:\nhttps://x/1\nhttps://x/2\n\n"
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
	assert.Equal(t, want, stdout.String())
}

func TestExecutePromptsForURL(t *testing.T) {
	dir, pagePath, configPath := setup(t)
	out := filepath.Join(dir, "commits.txt")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"-c", configPath, "-o", out, "--no-console"}, strings.NewReader(pagePath+"\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stderr.String(), "Enter bulletin page URL: ")
	assert.Empty(t, stdout.String())
	_, err := os.Stat(out)
	assert.NoError(t, err)
}

func TestExecuteStructureFailure(t *testing.T) {
	dir, _, configPath := setup(t)
	broken := filepath.Join(dir, "broken.html")
	require.NoError(t, os.WriteFile(broken, []byte("<html><body></body></html>"), 0o644))
	out := filepath.Join(dir, "commits.txt")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"-c", configPath, "-o", out, broken}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 4, code)
	assert.Contains(t, stderr.String(), "unexpected page structure")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestExecuteMissingURL(t *testing.T) {
	_, _, configPath := setup(t)

	var stdout, stderr bytes.Buffer
	code := execute([]string{"-c", configPath}, strings.NewReader("\n"), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "URL is required")
}

func TestExecuteBadSource(t *testing.T) {
	_, pagePath, configPath := setup(t)

	var stdout, stderr bytes.Buffer
	code := execute([]string{"-c", configPath, "--source", "ftp", pagePath}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 1, code)
}

func TestExecuteTooManyArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"a", "b"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 2, code)
}
