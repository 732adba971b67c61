// Package fileid provides deterministic content fingerprints for dataset files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const prefix = "sha256:"

// Fingerprint returns a stable fingerprint of the file contents at path.
// Same bytes always yield the same fingerprint, wherever the file lives.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintBytes returns the fingerprint of b.
func FingerprintBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return prefix + hex.EncodeToString(sum[:])
}

// Short returns the first n hex characters of a fingerprint, for display.
func Short(fp string, n int) string {
	hexPart := strings.TrimPrefix(fp, prefix)
	if n <= 0 || n >= len(hexPart) {
		return hexPart
	}
	return hexPart[:n]
}
