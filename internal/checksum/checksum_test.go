package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManifestHash(t *testing.T) {
	gen := NewGenerator()

	data := []byte("Section A:\nhttps://x/1\nhttps://x/2\n\n")

	hash1 := gen.ManifestHash(data)
	hash2 := gen.ManifestHash(append([]byte(nil), data...))

	assert.Equal(t, hash1, hash2, "hash must be deterministic")
	assert.Len(t, hash1, 64)

	changed := gen.ManifestHash([]byte("Section A:\nhttps://x/1\n\n"))
	assert.NotEqual(t, hash1, changed)
}

