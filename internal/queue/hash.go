package queue

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// ContentHash returns the hex SHA-256 digest of the NFC-normalized content.
// Equivalent Unicode spellings of the same reply hash identically.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(content)))
	return hex.EncodeToString(sum[:])
}
