package checksum

import (
	"crypto/sha256"
	"fmt"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// ManifestHash returns the hex SHA256 of rendered manifest bytes. Two runs
// against an unchanged page produce the same hash.
func (g *Generator) ManifestHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

