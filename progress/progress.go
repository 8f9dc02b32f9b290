package progress

import (
	"path/filepath"

	"github.com/pterm/pterm"

	"github.com/dhcgn/eml-digest/stats"
)

// Bar shows archive progress. It starts once the archive count is known.
type Bar struct {
	pb       *pterm.ProgressbarPrinter
	total    int
	messages int
	enabled  bool
}

// New creates a progress bar that is only drawn when logLevel is "info".
func New(logLevel string, enabled bool) *Bar {
	return &Bar{enabled: enabled && logLevel == "info"}
}

// Record implements stats.Sink.
func (b *Bar) Record(evt stats.Event) {
	if !b.enabled {
		return
	}

	switch evt.Type {
	case stats.EventTypeArchivesListed:
		b.start(evt.Count)
	case stats.EventTypeRendered:
		b.messages++
	case stats.EventTypeArchiveDone:
		if b.pb == nil {
			return
		}
		b.pb.UpdateTitle("Processed " + filepath.Base(evt.Archive))
		b.pb.Increment()
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

func (b *Bar) start(total int) {
	b.total = total
	if total == 0 {
		pterm.Warning.Println("No archives found")
		return
	}
	pb, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Reading archives").
		Start()
	if err != nil {
		return
	}
	b.pb = pb
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	_, _ = b.pb.Stop()
	pterm.Success.Printf("Rendered %d messages\n", b.messages)
}
