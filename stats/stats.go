package stats

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type Stage string

const (
	StageArchive Stage = "archive"
	StageDecode  Stage = "decode"
	StageParse   Stage = "parse"
	StageFilter  Stage = "filter"
	StageRender  Stage = "render"
	StageDate    Stage = "date"
	StageOutput  Stage = "output"
)

type EventType string

const (
	EventTypeScanned           EventType = "scanned"
	EventTypeRendered          EventType = "rendered"
	EventTypeSkippedDecode     EventType = "skipped_decode"
	EventTypeSkippedNotMessage EventType = "skipped_not_message"
	EventTypeSkippedNoBody     EventType = "skipped_no_body"
	EventTypeFiltered          EventType = "filtered"
	EventTypeArchivesListed    EventType = "archives_listed"
	EventTypeArchiveDone       EventType = "archive_done"
	EventTypeError             EventType = "error"
)

type Event struct {
	Stage   Stage
	Type    EventType
	Archive string
	Key     string
	Err     error
	Count   int
}

type Summary struct {
	Archives          int
	Scanned           int
	Rendered          int
	SkippedDecode     int
	SkippedNotMessage int
	SkippedNoBody     int
	Filtered          int
	Errors            int
	LastError         error
}

// Skipped returns the number of items that contributed nothing.
func (s Summary) Skipped() int {
	return s.SkippedDecode + s.SkippedNotMessage + s.SkippedNoBody + s.Filtered
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"archives", s.Archives,
		"scanned", s.Scanned,
		"rendered", s.Rendered,
		"skippedDecode", s.SkippedDecode,
		"skippedNotMessage", s.SkippedNotMessage,
		"skippedNoBody", s.SkippedNoBody,
		"filtered", s.Filtered,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Sink receives pipeline events as they happen.
type Sink interface {
	Record(evt Event)
}

// Collector tallies events into a Summary. The pipeline is sequential, so
// no locking is needed.
type Collector struct {
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Snapshot() Summary {
	return c.summary
}

func (c *Collector) Record(evt Event) {
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeRendered:
		c.summary.Rendered++
	case EventTypeSkippedDecode:
		c.summary.SkippedDecode++
	case EventTypeSkippedNotMessage:
		c.summary.SkippedNotMessage++
	case EventTypeSkippedNoBody:
		c.summary.SkippedNoBody++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeArchiveDone:
		c.summary.Archives++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

// Reporter logs the collected summary once the run is over.
type Reporter struct {
	*Collector
	logger  *slog.Logger
	started time.Time
}

func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{
		Collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
}

// Report logs the summary at info level.
func (r *Reporter) Report() Summary {
	summary := r.Snapshot()
	if r.logger != nil {
		attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
		r.logger.Info("stats summary", attrs...)
	}
	return summary
}

// Multi fans an event out to several sinks in order. Nil sinks are ignored.
type Multi []Sink

func (m Multi) Record(evt Event) {
	for _, s := range m {
		if s != nil {
			s.Record(evt)
		}
	}
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Printf("%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}

// Pair is one entry of a frequency table.
type Pair struct {
	Key   string
	Value int
}

// Top returns up to limit entries of m, most frequent first. Ties are
// ordered by key so the result is stable.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
