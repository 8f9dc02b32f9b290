// Package digest accumulates rendered messages in timestamp buckets and
// writes them out as one HTML document.
package digest

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/creachadair/atomicfile"
)

// Prologue and Epilogue frame the document. Each entry is one output line.
var (
	Prologue = []string{
		"<!DOCTYPE html>",
		`<html lang="en">`,
		"  <head></head>",
		"  <body>",
	}
	Epilogue = []string{
		"</body>",
		"</html>",
	}
)

// Digest holds rendered messages keyed by their resolved timestamp. It is
// not safe for concurrent use.
type Digest struct {
	buckets  map[time.Time][]string
	messages int
}

func New() *Digest {
	return &Digest{buckets: make(map[time.Time][]string)}
}

// Put appends one message's fragments to the bucket for ts, preceded by an
// empty separator line.
func (d *Digest) Put(ts time.Time, fragments []string) {
	key := ts.UTC()
	bucket := append(d.buckets[key], "")
	d.buckets[key] = append(bucket, fragments...)
	d.messages++
}

// Len returns the number of buckets.
func (d *Digest) Len() int { return len(d.buckets) }

// Messages returns the number of Put calls.
func (d *Digest) Messages() int { return d.messages }

// Keys returns the bucket timestamps in ascending order.
func (d *Digest) Keys() []time.Time {
	keys := make([]time.Time, 0, len(d.buckets))
	for k := range d.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// Lines returns every bucket's fragments, buckets in ascending timestamp
// order and messages within a bucket in arrival order.
func (d *Digest) Lines() []string {
	var lines []string
	for _, k := range d.Keys() {
		lines = append(lines, d.buckets[k]...)
	}
	return lines
}

// WriteTo writes the complete document to w, one fragment per line.
func (d *Digest) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, group := range [][]string{Prologue, d.Lines(), Epilogue} {
		for _, line := range group {
			n, err := fmt.Fprintln(bw, line)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return total, err
	}
	return total, nil
}

// WriteFile replaces path with the rendered document. The file is written
// to a temporary name and renamed into place, so a failed write leaves any
// previous file untouched.
func WriteFile(path string, d *Digest) error {
	f, err := atomicfile.New(path, 0o644)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Cancel()

	if _, err := d.WriteTo(f); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
