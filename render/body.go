package render

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// maxQuoteDepth caps how many leading reply markers are removed per line.
const maxQuoteDepth = 5

// Body renders a message body. Bodies flagged as HTML, or containing an
// "<html" marker anywhere, go through BodyHTML; everything else through
// BodyPlain.
func Body(text string, isHTML bool) []string {
	if isHTML || strings.Contains(text, "<html") {
		return []string{BodyHTML(text)}
	}
	return BodyPlain(text)
}

// BodyHTML returns the content between <body> and </body>. Tags inside are
// re-emitted without attributes; text is copied as written. A single flag
// tracks the body element, so any body start tag opens it and any body end
// tag closes it.
func BodyHTML(text string) string {
	var (
		out    strings.Builder
		inBody bool
	)

	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "body" {
				inBody = true
				if tt == html.SelfClosingTagToken {
					inBody = false
				}
				continue
			}
			if !inBody {
				continue
			}
			out.WriteString("<" + string(name) + ">")
			if tt == html.SelfClosingTagToken {
				out.WriteString("</" + string(name) + ">")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "body" {
				inBody = false
				continue
			}
			if inBody {
				out.WriteString("</" + string(name) + ">")
			}
		case html.TextToken:
			if inBody {
				out.Write(z.Raw())
			}
		}
	}

	return out.String()
}

// BodyPlain escapes a plain-text body line by line, strips reply markers and
// wraps the result in a preformatted block.
func BodyPlain(text string) []string {
	lines := []string{"<div>", "<pre><code>"}
	for _, line := range splitLines(text) {
		lines = append(lines, Escape(StripQuotes(line)))
	}
	return append(lines, "</code></pre>", "</div>")
}

// StripQuotes removes up to five leading "> " or ">" markers from line.
func StripQuotes(line string) string {
	for i := 0; i < maxQuoteDepth; i++ {
		switch {
		case strings.HasPrefix(line, "> "):
			line = line[2:]
		case strings.HasPrefix(line, ">"):
			line = line[1:]
		default:
			return line
		}
	}
	return line
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}

// splitLines splits s on line boundaries and drops the terminators. A
// trailing terminator does not produce an empty last line.
func splitLines(s string) []string {
	var lines []string
	for len(s) > 0 {
		i := strings.IndexFunc(s, isLineBreak)
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i])
		if strings.HasPrefix(s[i:], "\r\n") {
			s = s[i+2:]
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		s = s[i+size:]
	}
	return lines
}
