// Package render turns a parsed message into HTML fragments, one string per
// output line.
package render

import (
	"strings"

	"github.com/shurcooL/htmlg"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Headerer is satisfied by model.Message.
type Headerer interface {
	Header(name string) (string, bool)
}

// SummaryFields are the header fields shown above every message, in order.
var SummaryFields = []string{"Subject", "From", "To", "Date"}

// Header renders the title line and the summary fields of one message.
// Missing fields render as empty values.
func Header(h Headerer, key, archive string) []string {
	lines := []string{
		string(htmlg.Render(htmlg.H1(htmlg.Text(key + ", " + archive)))),
	}
	for _, name := range SummaryFields {
		value, _ := h.Header(name)
		lines = append(lines, string(htmlg.Render(paragraph(name+": "+value))))
	}
	lines = append(lines, string(htmlg.Render(paragraph(""))))
	return lines
}

func paragraph(text string) *html.Node {
	p := &html.Node{Type: html.ElementNode, Data: atom.P.String(), DataAtom: atom.P}
	if text != "" {
		htmlg.AppendChildren(p, htmlg.Text(text))
	}
	return p
}

// Escape returns s with HTML special characters escaped.
func Escape(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	_ = html.Render(&b, htmlg.Text(s))
	return b.String()
}
