// Package datekey resolves a message's Date header into the timestamp used
// to order the digest.
package datekey

import (
	"fmt"
	"strings"
	"time"
)

// Layout matches the day, month, year and time tokens of an RFC 5322 date
// once the weekday and zone are cut away.
const Layout = "2 Jan 2006 15:04:05"

// Epoch is the key of messages that carry no Date header.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseError reports a Date header that does not have the expected shape.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse date %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Resolve returns the timestamp for a Date header value. When present is
// false the header was missing and Epoch is returned.
//
// The value is split on commas and spaces, and tokens 1 to 4 are parsed as
// "DD Mon YYYY HH:MM:SS". Anything else in the header, the zone included,
// is ignored.
func Resolve(value string, present bool) (time.Time, error) {
	if !present {
		return Epoch, nil
	}

	fields := Tokens(value)
	if len(fields) > 5 {
		fields = fields[:5]
	}
	if len(fields) > 0 {
		fields = fields[1:]
	}

	t, err := time.Parse(Layout, strings.Join(fields, " "))
	if err != nil {
		return time.Time{}, &ParseError{Value: value, Err: err}
	}
	return t, nil
}

// Tokens splits value on commas, then on spaces, and drops empty tokens.
func Tokens(value string) []string {
	var tokens []string
	for _, part := range strings.Split(value, ",") {
		for _, tok := range strings.Split(part, " ") {
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}
