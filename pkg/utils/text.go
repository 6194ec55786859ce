package utils

import (
	"strings"
	"unicode/utf8"
)

// CharCount counts user-visible characters the way platform limits do.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}

// Redact removes every occurrence of the given secrets from msg.
func Redact(msg string, secrets ...string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, s, "[REDACTED]")
	}
	return msg
}
