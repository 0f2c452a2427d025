// Package contenthash fingerprints uploaded videos so identical content can
// reuse an earlier subtitle job.
package contenthash

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// New returns a streaming hasher; finish with Hex.
func New() hash.Hash {
	return blake3.New(Size, nil)
}

// Hex renders the digest of h.
func Hex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Reader hashes everything read from r.
func Reader(r io.Reader) (string, error) {
	h := New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("calculating blake3 hash: %w", err)
	}
	return Hex(h), nil
}

// File hashes the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Reader(f)
}
