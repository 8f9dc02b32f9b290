package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dhcgn/eml-digest/model"
)

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Active reports whether any pattern is configured.
func (o Options) Active() bool {
	return len(o.IncludeHeader)+len(o.IncludeBody)+len(o.ExcludeHeader)+len(o.ExcludeBody) > 0
}

// Filter holds compiled regex patterns for filtering messages.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeHeader []*regexp.Regexp
	includeBody   []*regexp.Regexp
	excludeHeader []*regexp.Regexp
	excludeBody   []*regexp.Regexp
	hits          map[*regexp.Regexp]int
}

// Stats reports how often each pattern matched, keyed by pattern text.
type Stats struct {
	IncludeHeaderHits map[string]int
	IncludeBodyHits   map[string]int
	ExcludeHeaderHits map[string]int
	ExcludeBodyHits   map[string]int
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns(opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	includeBody, err := compilePatterns(opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeHeader, err := compilePatterns(opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	excludeBody, err := compilePatterns(opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	includeActive := len(includeHeader) > 0 || len(includeBody) > 0
	excludeActive := len(excludeHeader) > 0 || len(excludeBody) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeHeader: includeHeader,
		includeBody:   includeBody,
		excludeHeader: excludeHeader,
		excludeBody:   excludeBody,
		hits:          make(map[*regexp.Regexp]int),
	}, nil
}

// AllowsMessage applies the filter to a parsed message. Header patterns see
// one "Key: value" line per field, sorted by key.
func (f *Filter) AllowsMessage(msg model.Message) bool {
	if !f.includeMode && !f.excludeMode {
		return true
	}
	return f.Allows(HeaderText(msg.Headers), msg.BodyText)
}

// Allows returns true if the header and body text pass the filter criteria.
func (f *Filter) Allows(header, body string) bool {
	if f.includeMode {
		return f.matchAny(f.includeHeader, header) || f.matchAny(f.includeBody, body)
	}

	if f.excludeMode {
		if f.matchAny(f.excludeHeader, header) || f.matchAny(f.excludeBody, body) {
			return false
		}
	}

	return true
}

// GetStats returns the per-pattern hit counts seen so far.
func (f *Filter) GetStats() Stats {
	return Stats{
		IncludeHeaderHits: f.countHits(f.includeHeader),
		IncludeBodyHits:   f.countHits(f.includeBody),
		ExcludeHeaderHits: f.countHits(f.excludeHeader),
		ExcludeBodyHits:   f.countHits(f.excludeBody),
	}
}

func (f *Filter) countHits(patterns []*regexp.Regexp) map[string]int {
	out := make(map[string]int, len(patterns))
	for _, re := range patterns {
		out[re.String()] = f.hits[re]
	}
	return out
}

// HeaderText renders headers as "Key: value" lines sorted by key.
func HeaderText(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(headers[k])
		sb.WriteString("\n")
	}
	return sb.String()
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func (f *Filter) matchAny(patterns []*regexp.Regexp, text string) bool {
	matched := false
	for _, re := range patterns {
		if re.MatchString(text) {
			f.hits[re]++
			matched = true
		}
	}
	return matched
}
