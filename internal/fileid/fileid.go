// Package fileid derives stable document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "doc-"

// DocID returns a stable document ID for the given absolute path. The same
// cleaned path always yields the same ID, so chunks of one file can be
// grouped across index rebuilds.
func DocID(absolutePath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return prefix + hex.EncodeToString(sum[:12])
}
