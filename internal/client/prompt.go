package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned when the prompt reads an empty line or EOF.
var ErrNoInput = errors.New("no input")

// PromptPassword writes a prompt to out and reads one line from in. Only the
// line ending is stripped; leading and trailing spaces are kept.
func PromptPassword(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter password to check: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", ErrNoInput
	}
	pw := strings.TrimRight(scanner.Text(), "\r")
	if pw == "" {
		return "", ErrNoInput
	}
	return pw, nil
}
