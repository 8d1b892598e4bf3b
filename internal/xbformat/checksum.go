package xbformat

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// FileChecksum hashes the full contents of the file at path with xxhash64,
// used to verify a transaction shadow-copy backup was not silently
// truncated or mutated during the rollback window.
func FileChecksum(path string) (uint64, error) {
	const op = "xbformat.FileChecksum"
	f, err := os.Open(path)
	if err != nil {
		return 0, Wrap(KindIO, op, "open "+path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, Wrap(KindIO, op, "hash "+path, err)
	}
	return h.Sum64(), nil
}
