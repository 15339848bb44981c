package logging

import (
	"strings"
	"testing"
)

func TestRedactString(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		leaks string
	}{
		{"bearer", "auth failed for Bearer eyJhbGciOiJIUzI1NiJ9.e30.abc", "eyJhbGciOiJIUzI1NiJ9"},
		{"key assignment", `rejected key="3 5 2 7"`, "3 5 2 7"},
		{"iv assignment", "bad iv=1,21", "1,21"},
		{"long token", "secretish 0123456789abcdef0123456789abcdef01", "0123456789abcdef0123456789abcdef01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactString(tt.in)
			if strings.Contains(got, tt.leaks) {
				t.Fatalf("RedactString(%q) = %q still contains %q", tt.in, got, tt.leaks)
			}
			if !strings.Contains(got, redacted) {
				t.Fatalf("RedactString(%q) = %q has no marker", tt.in, got)
			}
		})
	}

	if got := RedactString("matrix not invertible mod 26"); got != "matrix not invertible mod 26" {
		t.Fatalf("plain text altered: %q", got)
	}
}

func TestRedactMetadataNested(t *testing.T) {
	in := map[string]any{
		"request": map[string]any{"Key": "1 2 3 4", "mode": "hill"},
		"notes":   []any{"token=abcdefghijkl", 3},
	}
	out := RedactMetadata(in)
	nested := out["request"].(map[string]any)
	if nested["Key"] != redacted || nested["mode"] != "hill" {
		t.Fatalf("nested map not redacted: %v", nested)
	}
	notes := out["notes"].([]any)
	if strings.Contains(notes[0].(string), "abcdefghijkl") || notes[1] != 3 {
		t.Fatalf("slice not redacted: %v", notes)
	}
	if RedactMetadata(nil) != nil {
		t.Fatal("nil metadata should stay nil")
	}
}
