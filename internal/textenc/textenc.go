// Package textenc resolves text encodings by name and decodes file contents
// leniently: undecodable bytes never fail a file.
package textenc

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultName is used when no encoding is configured.
const DefaultName = "utf-8"

// Policy selects what happens to byte sequences that do not decode.
type Policy string

// Decoding policies.
const (
	// Replace substitutes U+FFFD for each invalid sequence.
	Replace Policy = "replace"
	// Ignore drops invalid sequences.
	Ignore Policy = "ignore"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	switch v := Policy(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case "":
		*p = Replace
	case Replace, Ignore:
		*p = v
	default:
		return fmt.Errorf("unknown decode policy %q (expected replace or ignore)", text)
	}
	return nil
}

// Encoding is a resolved text encoding.
type Encoding struct {
	Name string
	enc  encoding.Encoding
}

// aliases covers common spellings neither index knows.
var aliases = map[string]string{
	"utf8":    "utf-8",
	"latin-1": "iso-8859-1",
	"latin_1": "iso-8859-1",
	"ascii":   "us-ascii",
}

// Lookup resolves an encoding name. IANA names are tried first, then WHATWG
// labels; matching is case-insensitive. An empty name means UTF-8.
func Lookup(name string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultName
	}
	if alias, ok := aliases[key]; ok {
		key = alias
	}

	if enc, err := ianaindex.IANA.Encoding(key); err == nil && enc != nil {
		return Encoding{Name: name, enc: enc}, nil
	}
	if enc, err := htmlindex.Get(key); err == nil {
		return Encoding{Name: name, enc: enc}, nil
	}
	return Encoding{}, fmt.Errorf("unknown encoding %q", name)
}

// MustLookup is Lookup that panics on unknown names. For tests and constants.
func MustLookup(name string) Encoding {
	e, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return e
}

// Decode converts data to UTF-8. A byte order mark, when present, overrides
// the encoding and is stripped.
func (e Encoding) Decode(data []byte, policy Policy) (string, error) {
	enc := e.enc
	if enc == nil {
		enc = unicode.UTF8
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", e.String(), err)
	}

	text := string(out)
	if policy == Ignore {
		text = strings.ReplaceAll(text, "\uFFFD", "")
	}
	return text, nil
}

// String returns the configured name of the encoding.
func (e Encoding) String() string {
	if e.Name == "" {
		return DefaultName
	}
	return e.Name
}
