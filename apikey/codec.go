package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// DefaultKeyPrefix is the prefix used for generated keys when the caller
// does not configure one.
const DefaultKeyPrefix = "ak_"

// secretLen is the number of random bytes drawn per key.
const secretLen = 32

// displayIDLen is the number of raw key characters exposed for display.
const displayIDLen = 8

// Generate creates a new random API key. It returns the raw key, which is
// shown to the caller exactly once and never stored, together with its hex
// SHA-256 hash, which is the only form a backend persists.
func Generate(prefix string) (raw string, hash string, err error) {
	secret := make([]byte, secretLen)
	if _, err = io.ReadFull(rand.Reader, secret); err != nil {
		return "", "", fmt.Errorf("apikey: generate: %w", err)
	}
	raw = prefix + base64.RawURLEncoding.EncodeToString(secret)
	return raw, HashKey(raw), nil
}

// HashKey returns the hex-encoded SHA-256 digest of a raw key. The digest
// is deterministic and unsalted; the raw key already carries 256 bits of
// entropy, and an exact digest keeps lookup-by-hash a single indexed read.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether raw hashes to hash. The comparison is constant
// time so the runtime does not leak how many digest bytes match.
func Verify(raw string, hash string) bool {
	computed := HashKey(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// DisplayID returns a short fragment of the raw key, safe for logs and
// listings. It fails with ErrMalformedKey when the key is shorter than the
// minimum length expected for its prefix.
func DisplayID(raw string, prefix string) (string, error) {
	if !strings.HasPrefix(raw, prefix) || len(raw) < len(prefix)+displayIDLen {
		return "", ErrMalformedKey
	}
	return raw[len(prefix) : len(prefix)+displayIDLen], nil
}

// MaskKey obscures a raw key for logging. The head covers a typical prefix
// plus the display fragment and the tail keeps the last four characters;
// anything too short to mask meaningfully is hidden entirely.
func MaskKey(raw string) string {
	const head, tail = 6, 4
	if len(raw) <= head+tail {
		return "***"
	}
	return raw[:head] + "..." + raw[len(raw)-tail:]
}
