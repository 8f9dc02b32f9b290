// Package archive enumerates message files stored in 7z, zip and mbox
// archives, descending into archives nested inside other archives.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/eml-digest/model"
)

// Kind identifies an archive format by file extension.
type Kind int

const (
	KindNone Kind = iota
	Kind7z
	KindZip
	KindMbox
)

func (k Kind) String() string {
	switch k {
	case Kind7z:
		return "7z"
	case KindZip:
		return "zip"
	case KindMbox:
		return "mbox"
	}
	return "none"
}

// KindOf returns the archive kind for name, or KindNone.
func KindOf(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".7z":
		return Kind7z
	case ".zip":
		return KindZip
	case ".mbox", ".mbx":
		return KindMbox
	}
	return KindNone
}

// List returns the archives directly inside dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() || KindOf(e.Name()) == KindNone {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// WalkFunc receives each item in archive order. Returning an error stops
// the walk and Walk returns it.
type WalkFunc func(item model.Item) error

// Walk calls fn for every file inside the archive at path. Members that are
// archives themselves are opened and walked in place, up to maxDepth levels
// below path; deeper ones are passed to fn unopened.
func Walk(path string, maxDepth int, fn WalkFunc) error {
	return WalkAs(path, path, maxDepth, fn)
}

// WalkAs is Walk with items reporting name instead of path as their archive.
// Nested archives are named name + "/" + member.
func WalkAs(path, name string, maxDepth int, fn WalkFunc) error {
	kind := KindOf(path)
	if kind == KindNone {
		return fmt.Errorf("%s: unsupported archive type", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	w := &walker{maxDepth: maxDepth, fn: fn}
	return w.walk(kind, name, f, info.Size(), 0)
}

type walker struct {
	maxDepth int
	fn       WalkFunc
}

// errOpen marks failures to open an archive, as opposed to errors returned
// by the callback.
type errOpen struct{ err error }

func (e errOpen) Error() string { return e.err.Error() }
func (e errOpen) Unwrap() error { return e.err }

func (w *walker) walk(kind Kind, name string, r io.ReaderAt, size int64, depth int) error {
	switch kind {
	case Kind7z:
		return w.walk7z(name, r, size, depth)
	case KindZip:
		return w.walkZip(name, r, size, depth)
	case KindMbox:
		return w.walkMbox(name, io.NewSectionReader(r, 0, size), depth)
	}
	return fmt.Errorf("%s: unsupported archive type", name)
}

func (w *walker) walk7z(name string, r io.ReaderAt, size int64, depth int) error {
	zr, err := sevenzip.NewReader(r, size)
	if err != nil {
		return errOpen{fmt.Errorf("%s: open 7z: %w", name, err)}
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readMember(f.Open)
		if err != nil {
			return fmt.Errorf("%s: read %s: %w", name, f.Name, err)
		}
		if err := w.emit(name, f.Name, data, depth); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkZip(name string, r io.ReaderAt, size int64, depth int) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return errOpen{fmt.Errorf("%s: open zip: %w", name, err)}
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readMember(f.Open)
		if err != nil {
			return fmt.Errorf("%s: read %s: %w", name, f.Name, err)
		}
		if err := w.emit(name, f.Name, data, depth); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkMbox(name string, r io.Reader, depth int) error {
	mr := mboxlib.NewReader(r)
	for idx := 1; ; idx++ {
		msg, err := mr.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if idx == 1 {
				return errOpen{fmt.Errorf("%s: open mbox: %w", name, err)}
			}
			return fmt.Errorf("%s: message %d: %w", name, idx, err)
		}
		data, err := io.ReadAll(msg)
		if err != nil {
			return fmt.Errorf("%s: message %d read: %w", name, idx, err)
		}
		if err := w.emit(name, fmt.Sprintf("message-%06d", idx), data, depth); err != nil {
			return err
		}
	}
}

// emit passes a member to the callback, or walks it when it is a nested
// archive within the depth limit. A nested archive that cannot be opened is
// passed on as a plain item.
func (w *walker) emit(archive, key string, data []byte, depth int) error {
	if kind := KindOf(key); kind != KindNone && depth < w.maxDepth {
		err := w.walk(kind, archive+"/"+key, bytes.NewReader(data), int64(len(data)), depth+1)
		var oerr errOpen
		if !errors.As(err, &oerr) {
			return err
		}
	}
	return w.fn(model.Item{Key: key, Archive: archive, Bytes: data})
}

func readMember(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
