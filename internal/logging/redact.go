package logging

import (
	"io"
	"regexp"
	"strings"
)

var secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|access[_-]?token|auth[_-]?token|password)[=:\s]+["']?([^\s"']+)["']?`)

// MaskSecret masks a credential for display, keeping just enough of
// the edges to tell two keys apart.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + strings.Repeat("*", len(s)-6) + s[len(s)-3:]
}

// redactWriter scrubs credentials from log lines before they reach
// the underlying writer.
type redactWriter struct {
	w io.Writer
}

func (rw *redactWriter) Write(p []byte) (int, error) {
	if _, err := rw.w.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Redact scrubs credential-looking key=value pairs from a line before
// it is logged or echoed.
func Redact(line string) string {
	return secretPattern.ReplaceAllStringFunc(line, func(m string) string {
		sub := secretPattern.FindStringSubmatch(m)
		if len(sub) < 3 {
			return m
		}
		return strings.Replace(m, sub[2], MaskSecret(sub[2]), 1)
	})
}
