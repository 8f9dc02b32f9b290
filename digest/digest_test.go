package digest

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDigest_Ordering(t *testing.T) {
	d := New()
	day2 := time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC)
	day1 := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	d.Put(day2, []string{"second-a"})
	d.Put(day1, []string{"first"})
	d.Put(day2, []string{"second-b"})

	got := d.Lines()
	want := []string{"", "first", "", "second-a", "", "second-b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
	if d.Messages() != 3 {
		t.Errorf("Messages() = %d, want 3", d.Messages())
	}
}

func TestDigest_SameInstantDifferentZones(t *testing.T) {
	d := New()
	at := time.Date(2021, time.March, 3, 12, 0, 0, 0, time.UTC)
	d.Put(at, []string{"a"})
	d.Put(at.In(time.FixedZone("X", 3600)), []string{"b"})

	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestDigest_WriteTo(t *testing.T) {
	d := New()
	d.Put(time.Unix(0, 0), []string{"<p>x</p>"})

	var buf bytes.Buffer
	n, err := d.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo() = %d, wrote %d bytes", n, buf.Len())
	}

	want := strings.Join([]string{
		"<!DOCTYPE html>",
		`<html lang="en">`,
		"  <head></head>",
		"  <body>",
		"",
		"<p>x</p>",
		"</body>",
		"</html>",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("WriteTo() wrote\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteFile_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.html")

	build := func() *Digest {
		d := New()
		d.Put(time.Date(2013, time.August, 9, 0, 0, 48, 0, time.UTC), []string{"b"})
		d.Put(time.Date(2013, time.August, 8, 0, 0, 0, 0, time.UTC), []string{"a"})
		return d
	}

	if err := WriteFile(path, build()); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := WriteFile(path, build()); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Error("two runs over the same input produced different files")
	}
	if bytes.Index(first, []byte("\na\n")) > bytes.Index(first, []byte("\nb\n")) {
		t.Error("earlier bucket written after later bucket")
	}
}
