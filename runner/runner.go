package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhcgn/eml-digest/archive"
	"github.com/dhcgn/eml-digest/config"
	"github.com/dhcgn/eml-digest/datekey"
	"github.com/dhcgn/eml-digest/decode"
	"github.com/dhcgn/eml-digest/digest"
	"github.com/dhcgn/eml-digest/filter"
	"github.com/dhcgn/eml-digest/model"
	"github.com/dhcgn/eml-digest/parse"
	"github.com/dhcgn/eml-digest/render"
	"github.com/dhcgn/eml-digest/stats"
)

// Runner drives one digest build. Items are processed one at a time in
// archive order; the digest it owns is written once at the end.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger
	filter *filter.Filter
	sink   stats.Sink
	digest *digest.Digest
}

func New(cfg config.Config, logger *slog.Logger, sinks ...stats.Sink) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	}
	f, err := filter.New(opts)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	if opts.Active() {
		logger.Info("filter enabled",
			"include_header", len(opts.IncludeHeader),
			"include_body", len(opts.IncludeBody),
			"exclude_header", len(opts.ExcludeHeader),
			"exclude_body", len(opts.ExcludeBody))
	}

	return &Runner{
		cfg:    cfg,
		logger: logger,
		filter: f,
		sink:   stats.Multi(sinks),
		digest: digest.New(),
	}, nil
}

func (r *Runner) Digest() *digest.Digest {
	return r.digest
}

// Run processes every archive in the source directory and writes the
// digest. A malformed Date header aborts the run before anything is
// written.
func (r *Runner) Run(ctx context.Context) error {
	since := time.Now()

	if err := r.collect(ctx); err != nil {
		r.logger.Error("pipeline failed", "duration", time.Since(since), "err", err)
		return err
	}

	if err := r.write(); err != nil {
		r.emit(stats.Event{Stage: stats.StageOutput, Type: stats.EventTypeError, Err: err})
		r.logger.Error("pipeline failed", "duration", time.Since(since), "err", err)
		return err
	}

	r.logger.Info("pipeline completed",
		"duration", time.Since(since),
		"messages", r.digest.Messages(),
		"buckets", r.digest.Len(),
		"output", r.cfg.OutputPath)
	return nil
}

func (r *Runner) collect(ctx context.Context) error {
	archives, err := archive.List(r.cfg.SrcDir)
	if err != nil {
		return err
	}
	r.logger.Info("archives found", "src", r.cfg.SrcDir, "count", len(archives))
	r.emit(stats.Event{Stage: stats.StageArchive, Type: stats.EventTypeArchivesListed, Count: len(archives)})

	for _, path := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := r.archiveName(path)
		err := archive.WalkAs(path, name, r.cfg.MaxDepth, func(item model.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.Process(item)
		})
		if err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}

		r.logger.Debug("archive done", "archive", name, "kind", archive.KindOf(path).String())
		r.emit(stats.Event{Stage: stats.StageArchive, Type: stats.EventTypeArchiveDone, Archive: name})
	}
	return nil
}

// archiveName is the name items from path carry into the digest: path
// relative to the base directory, or path itself when it lies outside it.
func (r *Runner) archiveName(path string) string {
	rel, err := filepath.Rel(r.cfg.BaseDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return filepath.ToSlash(path)
	}
	return rel
}

func (r *Runner) write() error {
	if err := os.MkdirAll(filepath.Dir(r.cfg.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return digest.WriteFile(r.cfg.OutputPath, r.digest)
}

// Process runs one item through decoding, parsing, filtering, rendering and
// date resolution, then adds it to the digest. Items that cannot be decoded
// or carry no renderable message are dropped and nil is returned; a
// malformed Date header is reported as an error.
func (r *Runner) Process(item model.Item) error {
	base := stats.Event{Archive: item.Archive, Key: item.Key}
	r.emit(with(base, stats.StageArchive, stats.EventTypeScanned))

	text, enc, ok := decode.DecodeNamed(item.Bytes)
	if !ok {
		r.logger.Debug("item skipped", "reason", "undecodable", "archive", item.Archive, "key", item.Key, "tried", decode.Fallbacks())
		r.emit(with(base, stats.StageDecode, stats.EventTypeSkippedDecode))
		return nil
	}

	msg, err := parse.Parse(text)
	if err != nil {
		if !parse.IsSkip(err) {
			return fmt.Errorf("item %s: %w", item.Key, err)
		}
		evt := with(base, stats.StageParse, stats.EventTypeSkippedNotMessage)
		if errors.Is(err, parse.ErrNoBody) {
			evt.Type = stats.EventTypeSkippedNoBody
		}
		evt.Err = err
		r.logger.Debug("item skipped", "reason", string(evt.Type), "archive", item.Archive, "key", item.Key, "err", err)
		r.emit(evt)
		return nil
	}

	if !r.filter.AllowsMessage(msg) {
		r.logger.Debug("item filtered", "archive", item.Archive, "key", item.Key)
		r.emit(with(base, stats.StageFilter, stats.EventTypeFiltered))
		return nil
	}

	date, present := msg.Header("Date")
	ts, err := datekey.Resolve(date, present)
	if err != nil {
		err = fmt.Errorf("item %s: %w", item.Key, err)
		evt := with(base, stats.StageDate, stats.EventTypeError)
		evt.Err = err
		r.emit(evt)
		return err
	}

	fragments := render.Header(msg, item.Key, item.Archive)
	fragments = append(fragments, render.Body(msg.BodyText, msg.BodyIsHTML)...)
	r.digest.Put(ts, fragments)

	r.logger.Debug("item rendered", "archive", item.Archive, "key", item.Key, "encoding", enc, "html", msg.BodyIsHTML, "date", ts)
	r.emit(with(base, stats.StageRender, stats.EventTypeRendered))
	return nil
}

func (r *Runner) emit(evt stats.Event) {
	r.sink.Record(evt)
}

func with(evt stats.Event, stage stats.Stage, typ stats.EventType) stats.Event {
	evt.Stage = stage
	evt.Type = typ
	return evt
}
