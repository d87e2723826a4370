package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// Hasher computes sha256 content digests and memoizes them for the lifetime
// of one build run.
type Hasher struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewHasher returns an empty per-run hasher.
func NewHasher() *Hasher {
	return &Hasher{cache: make(map[string]string)}
}

// HashFile returns the hex sha256 digest of the file at path. Repeated calls
// for the same path within a run return the memoized digest.
func (h *Hasher) HashFile(path string) (string, error) {
	h.mu.Lock()
	if digest, ok := h.cache[path]; ok {
		h.mu.Unlock()
		return digest, nil
	}
	h.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	digest := hex.EncodeToString(hasher.Sum(nil))

	h.mu.Lock()
	h.cache[path] = digest
	h.mu.Unlock()
	return digest, nil
}

// HashBytes returns the hex sha256 digest of the provided payload.
func HashBytes(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
