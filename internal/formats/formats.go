// Package formats models the document encodings a library stores, such as
// mobi or epub, as lower-case tags.
package formats

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Format is a lower-case file encoding tag without a leading dot.
type Format string

// Common formats found in e-book libraries.
const (
	EPUB Format = "epub"
	MOBI Format = "mobi"
	AZW3 Format = "azw3"
	AZW  Format = "azw"
	DJVU Format = "djvu"
	TXT  Format = "txt"
	RTF  Format = "rtf"
	PDF  Format = "pdf"
)

// Parse normalizes a user- or catalog-supplied tag. Tags are case-insensitive,
// may carry a leading dot, and hold letters, digits and inner underscores so
// Calibre backup formats such as original_epub parse as distinct tags.
func Parse(value string) (Format, error) {
	tag := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "."))
	if tag == "" {
		return "", fmt.Errorf("empty format tag")
	}
	if strings.HasPrefix(tag, "_") || strings.HasSuffix(tag, "_") {
		return "", fmt.Errorf("invalid format tag %q", value)
	}
	for _, r := range tag {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("invalid format tag %q", value)
		}
	}
	return Format(tag), nil
}

// ParseList parses tags in order, failing on the first invalid one.
func ParseList(values []string) ([]Format, error) {
	out := make([]Format, 0, len(values))
	for _, value := range values {
		f, err := Parse(value)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// FromPath derives the format from a file's extension.
func FromPath(path string) (Format, bool) {
	f, err := Parse(filepath.Ext(path))
	if err != nil {
		return "", false
	}
	return f, true
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) String() string {
	return string(f)
}

// Set is an unordered collection of formats.
type Set map[Format]struct{}

// NewSet builds a set from the provided formats.
func NewSet(values ...Format) Set {
	s := make(Set, len(values))
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

// Contains reports whether f is in the set.
func (s Set) Contains(f Format) bool {
	_, ok := s[f]
	return ok
}

// Add inserts f into the set.
func (s Set) Add(f Format) {
	if f != "" {
		s[f] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []Format {
	out := make([]Format, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// String renders the set as a comma-separated list.
func (s Set) String() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, f := range sorted {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	return out
}
