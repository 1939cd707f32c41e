package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/helioview/helioview/backend"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `%[1]s: export site stats as a replayable CSV file
Usage:

 %[1]s > file

OR

 %[1]s -follow | helioview -replay /dev/stdin

Connection settings come from the HELIOVIEW_* environment variables.

`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	site := flag.Int("site", 0, "site ID to export; defaults to HELIOVIEW_SITE_ID")
	metricCodes := flag.String("metrics", "", "comma-separated metric codes; exports every site metric when empty")
	window := flag.Duration("window", time.Hour, "how far back from now to export")
	outputName := flag.String("output", "-", "output file for CSV stats data")
	follow := flag.Bool("follow", false, "keep appending fresh samples until interrupted")
	flag.Parse()

	cfg, err := backend.LoadConfig()
	if err != nil {
		log.Fatalf("failed loading configuration: %v", err)
	}
	if *site == 0 {
		*site = cfg.SiteID
	}
	client := backend.NewClient(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, err := client.Metrics(ctx, *site)
	if err != nil {
		log.Fatalf("failed loading metric catalog for site %d: %v", *site, err)
	}
	selected := selectMetrics(catalog, *metricCodes)
	if len(selected) < 1 {
		log.Fatalf("no metrics to export; site %d offers %d", *site, len(catalog))
	}

	var output io.WriteCloser = os.Stdout
	if *outputName != "-" {
		f, err := os.Create(*outputName)
		if err != nil {
			log.Fatalf("failed opening output file %q: %v", *outputName, err)
		}
		output = f
	}

	fmt.Fprintf(output, "timestamp_ms")
	for _, m := range selected {
		fmt.Fprintf(output, ", %s", columnName(m))
	}
	fmt.Fprintln(output)

	endMS := time.Now().UnixMilli()
	startMS := endMS - window.Milliseconds()
	if err := writeWindow(ctx, client, output, *site, selected, startMS, endMS); err != nil {
		log.Fatalf("failed exporting stats: %v", err)
	}
	if !*follow {
		if err := output.Close(); err != nil {
			log.Printf("failed closing output: %v", err)
		}
		return
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	lastMS := endMS
	for {
		select {
		case <-sigChan:
			if err := output.Close(); err != nil {
				log.Printf("failed closing output: %v", err)
			}
			return
		case t := <-ticker.C:
			tickEndMS := t.UnixMilli()
			if err := writeWindow(ctx, client, output, *site, selected, lastMS+1, tickEndMS); err != nil {
				log.Printf("failed fetching stats, will retry: %v", err)
				continue
			}
			lastMS = tickEndMS
		}
	}
}

func selectMetrics(catalog []backend.Metric, codes string) []backend.Metric {
	if strings.TrimSpace(codes) == "" {
		return catalog
	}
	selected := make([]backend.Metric, 0, len(catalog))
	for _, code := range strings.Split(codes, ",") {
		code = strings.TrimSpace(code)
		found := false
		for _, m := range catalog {
			if m.Code == code {
				selected = append(selected, m)
				found = true
				break
			}
		}
		if !found {
			log.Printf("site does not offer metric %q, skipping", code)
		}
	}
	return selected
}

// columnName renders a metric as an export column heading. The unit rides
// along in a trailing parenthetical so a replay can reconstruct the metric.
func columnName(m backend.Metric) string {
	if m.Unit == "" || strings.HasSuffix(m.Name, ")") {
		return m.Name
	}
	return fmt.Sprintf("%s (%s)", m.Name, m.Unit)
}

// writeWindow fetches one time window for every metric and writes the rows
// on the merged timeline. Missing readings become blank cells, not zeros.
func writeWindow(ctx context.Context, client *backend.Client, output io.Writer, site int, metrics []backend.Metric, startMS, endMS int64) error {
	series := make([]backend.Series, 0, len(metrics))
	for _, m := range metrics {
		s, err := client.Stats(ctx, site, m.Code, startMS, endMS)
		if err != nil {
			return fmt.Errorf("fetching %q: %w", m.Code, err)
		}
		series = append(series, s)
	}
	timeline := backend.MergeTimeline(series)
	columns := make([][]float64, len(series))
	for i, s := range series {
		columns[i] = backend.Resample(s, timeline)
	}
	for i, ts := range timeline {
		fmt.Fprintf(output, "%d", ts)
		for _, col := range columns {
			if backend.IsGap(col[i]) {
				fmt.Fprintf(output, ", ")
			} else {
				fmt.Fprintf(output, ", %s", strconv.FormatFloat(col[i], 'f', -1, 64))
			}
		}
		fmt.Fprintln(output)
	}
	return nil
}
