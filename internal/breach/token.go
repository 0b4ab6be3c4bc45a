// Package breach checks passwords against a public breach corpus using the
// k-anonymity range protocol: only a short prefix of the password's SHA-1
// digest leaves the process, and the final match happens locally.
package breach

import (
	"crypto/sha1" //nolint:gosec // required by the range API wire protocol
	"encoding/hex"
	"strings"
)

// Token is the uppercase hex SHA-1 digest of one password. It is built fresh
// for each check and never stored.
type Token struct {
	digest string
}

// NewToken hashes password.
func NewToken(password string) Token {
	sum := sha1.Sum([]byte(password)) //nolint:gosec
	return Token{digest: strings.ToUpper(hex.EncodeToString(sum[:]))}
}

// Prefix returns the first n hex characters of the digest. n is clamped to
// the digest length.
func (t Token) Prefix(n int) string {
	return t.digest[:clamp(n, len(t.digest))]
}

// Matches reports whether the digest after the first n characters equals,
// ignoring case, the suffix of any candidate line. A line is either a bare
// suffix or "SUFFIX:COUNT".
func (t Token) Matches(n int, lines []string) bool {
	rest := t.digest[clamp(n, len(t.digest)):]
	for _, line := range lines {
		suffix, _, _ := strings.Cut(line, ":")
		suffix = strings.TrimSpace(suffix)
		if suffix != "" && strings.EqualFold(suffix, rest) {
			return true
		}
	}
	return false
}

// String keeps the digest out of logs.
func (t Token) String() string { return "breach.Token(sha1)" }

func clamp(n, limit int) int {
	return max(0, min(n, limit))
}
