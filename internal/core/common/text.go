package common

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

// Truncate cuts s to at most n runes and appends "..." when anything was cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// Prefix returns the first n runes of s without a marker.
func Prefix(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ContentHash is the hex md5 digest used as the document identity key.
func ContentHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CountNonSpace counts runes that are not whitespace.
func CountNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func WordCount(s string) int {
	return len(strings.Fields(s))
}
