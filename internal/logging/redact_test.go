package logging

import (
	"strings"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "******"},
		{"secret", "******"},
		{"kitekey12345", "kit******345"},
	}
	for _, tt := range tests {
		if got := MaskSecret(tt.in); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactScrubsCredentialPairs(t *testing.T) {
	line := `connecting api_key=kitekey12345 access_token="tok_abcdef9876" symbol=NIFTY`
	got := Redact(line)

	if strings.Contains(got, "kitekey12345") || strings.Contains(got, "tok_abcdef9876") {
		t.Fatalf("credentials survived redaction: %s", got)
	}
	if !strings.Contains(got, "symbol=NIFTY") {
		t.Errorf("non-sensitive fields must be untouched: %s", got)
	}
}
