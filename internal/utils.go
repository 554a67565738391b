package internal

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// CacheKey hashes the given parts into a stable file-name friendly key.
// Format: md5(part1|part2|...)[:16]
func CacheKey(parts ...string) string {
	hash := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])[:16]
}

// SanitizeFilename creates a safe filename from a string
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isAlphaNumeric(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// isAlphaNumeric checks if a rune is alphanumeric
func isAlphaNumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
