// SPDX-License-Identifier: MIT
package phonetic

import "strings"

// Normalize lowercases s and drops every byte outside a-z. It is the only
// text normalization applied anywhere in the pipeline.
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Words splits a passage into normalized words. Tokens that normalize to
// nothing are dropped.
func Words(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := Normalize(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}
