package client

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPromptPassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain", "hunter22\n", "hunter22", nil},
		{"crlf", "hunter22\r\n", "hunter22", nil},
		{"spaces kept", "  pass phrase \n", "  pass phrase ", nil},
		{"no newline", "pw", "pw", nil},
		{"empty line", "\n", "", ErrNoInput},
		{"eof", "", "", ErrNoInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := PromptPassword(strings.NewReader(tt.input), &out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v; want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q; want %q", got, tt.want)
			}
			if !strings.Contains(out.String(), "Enter password") {
				t.Errorf("prompt not written: %q", out.String())
			}
		})
	}
}
