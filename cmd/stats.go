package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/eml-digest/archive"
	"github.com/dhcgn/eml-digest/datekey"
	"github.com/dhcgn/eml-digest/decode"
	"github.com/dhcgn/eml-digest/filter"
	"github.com/dhcgn/eml-digest/model"
	"github.com/dhcgn/eml-digest/parse"
	"github.com/dhcgn/eml-digest/stats"
)

var (
	reportDir     string
	topN          int
	maxDepth      int
	includeHeader []string
	includeBody   []string
	excludeHeader []string
	excludeBody   []string
)

// headersToTrack are counted per distinct value. "Year" is derived from the
// Date header.
var headersToTrack = []string{"From", "To", "Subject", "Year"}

var statsCmd = &cobra.Command{
	Use:   "stats [archive dir]",
	Short: "Analyse the archives and show header statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcDir := args[0]

		fmt.Println("Analyzing archives in:", srcDir)

		f, err := filter.New(filter.Options{
			IncludeHeader: includeHeader,
			IncludeBody:   includeBody,
			ExcludeHeader: excludeHeader,
			ExcludeBody:   excludeBody,
		})
		if err != nil {
			return fmt.Errorf("create filter: %w", err)
		}

		counter := newCounter(headersToTrack)
		collector := stats.NewCollector()

		archives, err := archive.List(srcDir)
		if err != nil {
			return err
		}

		for _, path := range archives {
			err := archive.Walk(path, maxDepth, func(item model.Item) error {
				collector.Record(stats.Event{Type: stats.EventTypeScanned})
				msg, ok := parseItem(item, collector)
				if !ok {
					return nil
				}
				if !f.AllowsMessage(msg) {
					collector.Record(stats.Event{Type: stats.EventTypeFiltered})
					return nil
				}
				collector.Record(stats.Event{Type: stats.EventTypeRendered})
				counter.add(msg)
				return nil
			})
			if err != nil {
				return fmt.Errorf("archive %s: %w", path, err)
			}
			collector.Record(stats.Event{Type: stats.EventTypeArchiveDone, Archive: path})
		}

		printSummary(collector.Snapshot(), f.GetStats())
		for _, header := range headersToTrack {
			fmt.Printf("Top %d %s:\n", topN, header)
			stats.PrettyPrintTop(counter[header], topN)
			fmt.Println()
		}

		if err := saveCSVReports(counter, headersToTrack, reportDir, 1000); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}

		fmt.Printf("\nReports saved to directory: %s\n", reportDir)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	statsCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	statsCmd.Flags().IntVar(&maxDepth, "max-depth", 3, "How many levels of nested archives to open")
	statsCmd.Flags().StringArrayVar(&includeHeader, "include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	statsCmd.Flags().StringArrayVar(&includeBody, "include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	statsCmd.Flags().StringArrayVar(&excludeHeader, "exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	statsCmd.Flags().StringArrayVar(&excludeBody, "exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")
	rootCmd.AddCommand(statsCmd)
}

// parseItem decodes and parses one item, recording why it was skipped.
func parseItem(item model.Item, sink stats.Sink) (model.Message, bool) {
	text, ok := decode.Decode(item.Bytes)
	if !ok {
		sink.Record(stats.Event{Type: stats.EventTypeSkippedDecode})
		return model.Message{}, false
	}
	msg, err := parse.Parse(text)
	if err != nil {
		typ := stats.EventTypeSkippedNotMessage
		switch {
		case !parse.IsSkip(err):
			typ = stats.EventTypeError
		case errors.Is(err, parse.ErrNoBody):
			typ = stats.EventTypeSkippedNoBody
		}
		sink.Record(stats.Event{Type: typ, Err: err})
		return model.Message{}, false
	}
	return msg, true
}

type counter map[string]map[string]int

func newCounter(headers []string) counter {
	c := make(counter, len(headers))
	for _, h := range headers {
		c[h] = make(map[string]int)
	}
	return c
}

func (c counter) add(msg model.Message) {
	for header, counts := range c {
		if header == "Year" {
			date, present := msg.Header("Date")
			if ts, err := datekey.Resolve(date, present); err == nil {
				counts[strconv.Itoa(ts.Year())]++
			} else {
				counts["invalid"]++
			}
			continue
		}
		if value, ok := msg.Header(header); ok && value != "" {
			counts[value]++
		}
	}
}

func printSummary(s stats.Summary, fs filter.Stats) {
	var filterPercent float64
	if s.Scanned > 0 {
		filterPercent = float64(s.Filtered) / float64(s.Scanned) * 100
	}
	fmt.Printf("Processed %d items in %d archives (%d messages, %d skipped, filtered %.2f%%)\n\n",
		s.Scanned, s.Archives, s.Rendered, s.Skipped(), filterPercent)

	for _, group := range []struct {
		title string
		hits  map[string]int
	}{
		{"Include Header Filters", fs.IncludeHeaderHits},
		{"Include Body Filters", fs.IncludeBodyHits},
		{"Exclude Header Filters", fs.ExcludeHeaderHits},
		{"Exclude Body Filters", fs.ExcludeBodyHits},
	} {
		if len(group.hits) == 0 {
			continue
		}
		fmt.Println(group.title + ":")
		for _, p := range stats.Top(group.hits, -1) {
			fmt.Printf("  %s: %d hits\n", p.Key, p.Value)
		}
		fmt.Println()
	}
}

func saveCSVReports(c counter, headers []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, header := range headers {
		filePath := filepath.Join(dir, fmt.Sprintf("report_%s.csv", normalizeHeaderName(header)))
		if err := writeCSV(filePath, stats.Top(c[header], limit)); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, pairs []stats.Pair) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := writer.Write([]string{p.Key, strconv.Itoa(p.Value)}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func normalizeHeaderName(header string) string {
	name := strings.ToLower(header)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
