package fingerprint

import (
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// hashSize is 128 bits: cook's fixed-width content digest. BLAKE2b-128
// was picked (see SPEC_FULL.md's DOMAIN STACK) because golang.org/x/crypto
// is already present in the retrieval pack for bcrypt, and BLAKE2b gives
// fast, well-distributed digests without pulling in a new dependency
// family purely for a non-cryptographic-grade content check.
const hashSize = 16

// hashFile computes the content hash of the file at path.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New(hashSize, nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashBytes hashes an in-memory value (used for hashing the
// ingredient-set digest).
func hashBytes(b []byte) string {
	h, err := blake2b.New(hashSize, nil)
	if err != nil {
		// blake2b.New only fails for bad key/size args, never for nil
		// key with a valid size; unreachable in practice.
		panic(err)
	}
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
