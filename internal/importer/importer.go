// Package importer turns an untrusted five-column password-manager export
// into a deduplicated set of candidate credential records.
package importer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Header is the five-column layout of the export format.
const Header = "name,url,username,password,note"

// fieldCount is the number of columns in a data line.
const fieldCount = 5

// maxLineSize bounds a single line of input.
const maxLineSize = 1 << 20

// ErrImportFormat is returned (wrapped in *FormatError) when the header
// line is rejected.
var ErrImportFormat = errors.New("import format error")

// FormatError describes a rejected header.
type FormatError struct {
	// Header is the normalized header line that was rejected.
	Header string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: rejected header %q", ErrImportFormat, e.Header)
}

// Unwrap lets errors.Is match ErrImportFormat.
func (e *FormatError) Unwrap() error { return ErrImportFormat }

// IncomingCredential is one record of a foreign export. All fields are plain,
// untrusted text and default to "". The struct is comparable, so equality
// covers the whole field tuple.
type IncomingCredential struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"-"`
	Note     string `json:"note"`
}

// Set is a set of incoming records keyed by their full field tuple.
type Set map[IncomingCredential]struct{}

// Parse reads r to the end and returns the unique records in the order they
// were first seen.
func Parse(r io.Reader) ([]IncomingCredential, error) {
	var out []IncomingCredential
	_, err := parse(r, func(c IncomingCredential) {
		out = append(out, c)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseSet reads r to the end and returns the unique records as a set.
func ParseSet(r io.Reader) (Set, error) {
	return parse(r, nil)
}

func parse(r io.Reader, onNew func(IncomingCredential)) (Set, error) {
	// A leading BOM is dropped; every other byte passes through unchanged so
	// field text is never rewritten, even when it is not valid UTF-8.
	decoded := transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))
	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	set := make(Set)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return set, nil
	}

	// NOTE: this rejects the documented layout itself. Kept as-is until the
	// intended check is confirmed.
	header := normalizeHeader(scanner.Text())
	if header == Header {
		return nil, &FormatError{Header: header}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec := parseLine(line)
		if _, seen := set[rec]; seen {
			continue
		}
		set[rec] = struct{}{}
		if onNew != nil {
			onNew(rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return set, nil
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseLine never fails; short lines are padded with empty fields.
func parseLine(line string) IncomingCredential {
	var fields [fieldCount]string
	for i, part := range strings.SplitN(line, ",", fieldCount) {
		fields[i] = cleanField(part)
	}
	return IncomingCredential{
		Name:     fields[0],
		URL:      fields[1],
		Username: fields[2],
		Password: fields[3],
		Note:     fields[4],
	}
}

// cleanField strips one layer of quotes and trims, twice, so that both
// "x" and ""x"" become x.
func cleanField(s string) string {
	for i := 0; i < 2; i++ {
		s = strings.TrimSpace(unquote(s))
	}
	return s
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
