// Package decode turns raw message bytes into text by trying a fixed list
// of encodings in order.
package decode

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

type fallback struct {
	name   string
	decode func([]byte) (string, bool)
}

var fallbacks = []fallback{
	{"windows-1252", decodeWindows1252},
	{"us-ascii", decodeASCII},
	{"utf-8", decodeUTF8},
}

// Fallbacks returns the encoding names Decode tries, in order.
func Fallbacks() []string {
	names := make([]string, len(fallbacks))
	for i, f := range fallbacks {
		names[i] = f.name
	}
	return names
}

// Decode returns b decoded with the first encoding that accepts it.
// It reports false when none of them does.
func Decode(b []byte) (string, bool) {
	text, _, ok := DecodeNamed(b)
	return text, ok
}

// DecodeNamed is like Decode but also reports which encoding succeeded.
func DecodeNamed(b []byte) (text, encoding string, ok bool) {
	for _, f := range fallbacks {
		if text, ok := f.decode(b); ok {
			return text, f.name, true
		}
	}
	return "", "", false
}

// Bytes left unassigned by the windows-1252 code page. x/text maps them to
// C1 controls, so they are rejected here.
func undefined1252(c byte) bool {
	switch c {
	case 0x81, 0x8d, 0x8f, 0x90, 0x9d:
		return true
	}
	return false
}

func decodeWindows1252(b []byte) (string, bool) {
	for _, c := range b {
		if undefined1252(c) {
			return "", false
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func decodeASCII(b []byte) (string, bool) {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return "", false
		}
	}
	return string(b), true
}

func decodeUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}
