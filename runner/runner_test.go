package runner

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhcgn/eml-digest/config"
	"github.com/dhcgn/eml-digest/datekey"
	"github.com/dhcgn/eml-digest/model"
	"github.com/dhcgn/eml-digest/stats"
)

func message(subject, date, body string) string {
	var b strings.Builder
	b.WriteString("From: alice@example.com\r\n")
	b.WriteString("To: bob@example.com\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	if date != "" {
		b.WriteString("Date: " + date + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

func writeZip(t *testing.T, path string, files [][2]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T, files [][2]string) config.Config {
	t.Helper()
	base := t.TempDir()
	src := filepath.Join(base, "src")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(src, "retr.zip"), files)
	return config.Config{
		BaseDir:    base,
		SrcDir:     src,
		OutputPath: filepath.Join(base, "output.html"),
		MaxDepth:   3,
		LogLevel:   "info",
	}
}

func TestRun_ChronologicalOrder(t *testing.T) {
	cfg := setup(t, [][2]string{
		{"tmp/000001", message("second", "Thu, 02 Jan 2020 09:00:00 +0000", "later\n")},
		{"tmp/000002", message("first", "Wed, 01 Jan 2020 09:00:00 +0000", "> earlier\n")},
		{"tmp/000003", message("undated", "", "no date\n")},
	})

	collector := stats.NewCollector()
	r, err := New(cfg, nil, collector)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	doc := string(out)

	undated := strings.Index(doc, "Subject: undated")
	first := strings.Index(doc, "Subject: first")
	second := strings.Index(doc, "Subject: second")
	if undated < 0 || first < 0 || second < 0 {
		t.Fatalf("missing messages in output:\n%s", doc)
	}
	if !(undated < first && first < second) {
		t.Errorf("order = undated@%d first@%d second@%d, want ascending", undated, first, second)
	}
	if !strings.HasPrefix(doc, "<!DOCTYPE html>\n") || !strings.HasSuffix(doc, "</body>\n</html>\n") {
		t.Errorf("document not framed:\n%s", doc)
	}
	if !strings.Contains(doc, "\nearlier\n") {
		t.Errorf("quote marker not stripped:\n%s", doc)
	}

	summary := collector.Snapshot()
	if summary.Scanned != 3 || summary.Rendered != 3 || summary.Archives != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRun_ArchiveNameRelativeToBase(t *testing.T) {
	cfg := setup(t, [][2]string{
		{"tmp/000001", message("hello", "Fri, 09 Aug 2013 00:00:48 +0000", "x\n")},
	})

	r, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	doc := string(out)
	if !strings.Contains(doc, "\n<h1>tmp/000001, src/retr.zip</h1>\n") {
		t.Errorf("heading not relative to base dir:\n%s", doc)
	}
	if strings.Contains(doc, cfg.BaseDir) {
		t.Errorf("output leaks base dir %q:\n%s", cfg.BaseDir, doc)
	}
}

func TestArchiveName(t *testing.T) {
	r := &Runner{cfg: config.Config{BaseDir: "/data/mail"}}
	tests := map[string]string{
		"/data/mail/src/retr.zip":  "src/retr.zip",
		"/data/mail/retr.zip":      "retr.zip",
		"/elsewhere/src/retr.zip":  "/elsewhere/src/retr.zip",
		"/data/mailbox/a/retr.zip": "/data/mailbox/a/retr.zip",
	}
	for path, want := range tests {
		if got := r.archiveName(path); got != want {
			t.Errorf("archiveName(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	cfg := setup(t, [][2]string{
		{"a", message("a", "Fri, 09 Aug 2013 00:00:48 +0000", "x\n")},
		{"b", message("b", "Fri, 09 Aug 2013 00:00:48 +0000", "y\n")},
	})

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		r, err := New(cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		out, err := os.ReadFile(cfg.OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, out)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("two runs produced different output")
	}
	if r := string(outputs[0]); strings.Index(r, "Subject: a") > strings.Index(r, "Subject: b") {
		t.Error("messages in one bucket not kept in arrival order")
	}
}

func TestRun_BadDateIsFatal(t *testing.T) {
	cfg := setup(t, [][2]string{
		{"good", message("good", "Fri, 09 Aug 2013 00:00:48 +0000", "x\n")},
		{"bad", message("bad", "sometime last week", "y\n")},
	})

	r, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = r.Run(context.Background())
	var perr *datekey.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Run() error = %v, want *datekey.ParseError", err)
	}
	if _, statErr := os.Stat(cfg.OutputPath); !os.IsNotExist(statErr) {
		t.Errorf("output written despite failure: %v", statErr)
	}
}

func TestProcess_Skips(t *testing.T) {
	cfg := config.Config{}
	collector := stats.NewCollector()
	r, err := New(cfg, nil, collector)
	if err != nil {
		t.Fatal(err)
	}

	items := []model.Item{
		{Key: "undecodable", Bytes: []byte{0x81, 0xff}},
		{Key: "not-a-message", Bytes: []byte("just words\n")},
		{Key: "no-body", Bytes: []byte("Subject: pic\nContent-Type: image/gif\n\nGIF89a\n")},
	}
	for _, item := range items {
		if err := r.Process(item); err != nil {
			t.Errorf("Process(%s) error = %v", item.Key, err)
		}
	}

	summary := collector.Snapshot()
	if summary.SkippedDecode != 1 || summary.SkippedNotMessage != 1 || summary.SkippedNoBody != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if r.Digest().Messages() != 0 {
		t.Errorf("Digest().Messages() = %d, want 0", r.Digest().Messages())
	}
}

func TestProcess_Filter(t *testing.T) {
	cfg := config.Config{ExcludeHeader: []string{"Subject: spam"}}
	r, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Process(model.Item{Key: "1", Bytes: []byte(message("spam offer", "", "buy\n"))}); err != nil {
		t.Fatal(err)
	}
	if err := r.Process(model.Item{Key: "2", Bytes: []byte(message("hello", "", "hi\n"))}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Join(r.Digest().Lines(), "\n")
	if strings.Contains(lines, "spam offer") || !strings.Contains(lines, "Subject: hello") {
		t.Errorf("Lines() = %s", lines)
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := setup(t, [][2]string{{"a", message("a", "", "x\n")}})
	r, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
