package backend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"
	"github.com/fsnotify/fsnotify"
)

// Mode describes where a session's data comes from.
type Mode uint8

const (
	ModeNone Mode = iota
	// ModePolling sessions fetch stats from the REST service on a ticker.
	ModePolling
	// ModeReplaying sessions parse an exported CSV, tailing the file as it
	// grows.
	ModeReplaying
)

// Session is one stream of raw series data. Data is shared with the
// producing goroutine; read it through Snapshot.
type Session struct {
	ID   string
	Mode Mode
	Data *Table
	Err  error
}

// Table accumulates raw series for one session. It is safe for concurrent
// use: the session goroutine writes while the UI snapshots once per frame.
type Table struct {
	mu      sync.RWMutex
	metrics []Metric
	series  []Series
	index   map[string]int
}

func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Register adds a series slot for a metric and returns its index.
// Registering an existing code returns the original slot.
func (t *Table) Register(m Metric) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.index[m.Code]; ok {
		return idx
	}
	idx := len(t.series)
	t.index[m.Code] = idx
	t.metrics = append(t.metrics, m)
	t.series = append(t.series, Series{ID: m.Code, Name: m.Name})
	return idx
}

// Metrics returns the registered metrics in registration order, parallel
// to Snapshot.
func (t *Table) Metrics() []Metric {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Metric, len(t.metrics))
	copy(out, t.metrics)
	return out
}

// Insert appends one sample to a registered series. Out-of-order samples
// are tolerated; the aggregator sorts defensively.
func (t *Table) Insert(idx int, sample Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.series) {
		return
	}
	t.series[idx].Samples = append(t.series[idx].Samples, sample)
}

// Replace swaps a registered series' samples wholesale. Polling sessions
// refetch the full window each tick, so replacement is the natural update.
func (t *Table) Replace(idx int, s Series) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.series) {
		return
	}
	samples := make([]Sample, len(s.Samples))
	copy(samples, s.Samples)
	t.series[idx].Samples = samples
}

// Snapshot returns an independent copy of every series in registration
// order, safe to hand to the aggregator while the session keeps writing.
func (t *Table) Snapshot() []Series {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Series, len(t.series))
	for i, s := range t.series {
		samples := make([]Sample, len(s.Samples))
		copy(samples, s.Samples)
		out[i] = Series{ID: s.ID, Name: s.Name, Samples: samples}
	}
	return out
}

// Datasource owns every data session, live or replayed.
type Datasource struct {
	pool    *stream.MutationPool[string, Session]
	watcher *fsnotify.Watcher
	client  *Client
	cfg     Config
	appCtx  context.Context
}

func NewDatasource(appCtx context.Context, mutator *stream.Mutator, client *Client, cfg Config) (*Datasource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed creating file watcher: %w", err)
	}
	return &Datasource{
		pool:    stream.NewMutationPool[string, Session](mutator),
		watcher: watcher,
		client:  client,
		cfg:     cfg,
		appCtx:  appCtx,
	}, nil
}

// SessionStream emits the set of known sessions whenever it changes.
func (d *Datasource) SessionStream(ctx context.Context) <-chan map[string]*stream.Mutation[Session] {
	return d.pool.Stream(ctx)
}

// ActiveSessionStream follows whichever session most recently started,
// switching to new sessions as they appear.
func (d *Datasource) ActiveSessionStream(ctx context.Context) <-chan Session {
	return stream.Multiplex(d.pool.Stream(ctx), func(ctx context.Context, state string, mutations map[string]*stream.Mutation[Session]) (<-chan Session, string) {
		best := ""
		var bestMut *stream.Mutation[Session]
		for id, m := range mutations {
			// Session IDs are generation timestamps, so the lexically
			// greatest ID is the newest session.
			if id > best {
				best = id
				bestMut = m
			}
		}
		if bestMut == nil || best == state {
			return nil, state
		}
		return bestMut.Stream(ctx), best
	})
}

func generateSessionID() string {
	return strings.Replace(time.Now().UTC().Format("20060102150405.000000000"), ".", "", 1)
}

// PollSite starts a live session for a site and returns the session ID.
// The session discovers the site's metric catalog, then refetches the
// chart window for every metric on each tick. Catalog discovery retries
// on the same ticker until it succeeds.
func (d *Datasource) PollSite(siteID int) string {
	sessionID := generateSessionID()
	stream.Mutate(d.pool, sessionID, func(ctx context.Context) <-chan Session {
		out := make(chan Session, 1)
		go func() {
			defer close(out)
			session := Session{
				ID:   sessionID,
				Mode: ModePolling,
				Data: NewTable(),
			}
			out <- session

			interval := d.cfg.PollInterval
			if interval <= 0 {
				interval = 10 * time.Second
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			var metrics []Metric
			for {
				if metrics == nil {
					ms, err := d.client.Metrics(ctx, siteID)
					session.Err = err
					if err == nil && len(ms) > 0 {
						metrics = ms
						for _, m := range metrics {
							session.Data.Register(m)
						}
					}
				}
				if metrics != nil {
					session.Err = d.fetchOnce(ctx, session.Data, siteID, metrics)
				}
				select {
				case out <- session:
				case <-ctx.Done():
					return
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	})
	return sessionID
}

func (d *Datasource) fetchOnce(ctx context.Context, table *Table, siteID int, metrics []Metric) error {
	window := d.cfg.ChartWindow
	if window <= 0 {
		window = time.Hour
	}
	endMS := time.Now().UnixMilli()
	startMS := endMS - window.Milliseconds()
	var firstErr error
	for _, m := range metrics {
		s, err := d.client.Stats(ctx, siteID, m.Code, startMS, endMS)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		table.Replace(table.Register(m), s)
	}
	return firstErr
}

// LoadFromFile prompts for an exported CSV and replays it.
func (d *Datasource) LoadFromFile(expl *explorer.Explorer) (string, error) {
	file, err := expl.ChooseFile()
	if err != nil {
		return "", err
	}
	return d.Replay(file), nil
}

// Replay starts a session that parses exported CSV data, tailing each file
// so a download still in progress keeps streaming, and returns the session
// ID.
func (d *Datasource) Replay(files ...io.ReadCloser) string {
	sessionID := generateSessionID()
	stream.Mutate(d.pool, sessionID, func(ctx context.Context) <-chan Session {
		out := make(chan Session, 1)
		go func() {
			defer close(out)
			session := Session{
				ID:   sessionID,
				Mode: ModeReplaying,
				Data: NewTable(),
			}
			out <- session

			rows := make(chan exportRow, 1024)
			for _, file := range files {
				if f, ok := file.(interface{ Name() string }); ok {
					d.watcher.Add(f.Name())
				}
				go d.readExport(file, rows)
			}
			for {
				select {
				case <-ctx.Done():
					for _, file := range files {
						file.Close()
					}
					return
				case row := <-rows:
					if row.metrics != nil {
						for _, m := range row.metrics {
							session.Data.Register(m)
						}
					} else {
						session.Data.Insert(row.series, row.sample)
					}
					select {
					case out <- session:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	})
	return sessionID
}

type exportRow struct {
	metrics []Metric
	series  int
	sample  Sample
}

func exportSeriesID(idx int, name string) string {
	slug := strings.ToLower(name)
	if cut := strings.Index(slug, " ("); cut > 0 {
		slug = slug[:cut]
	}
	slug = strings.ReplaceAll(strings.TrimSpace(slug), " ", "_")
	if slug == "" {
		slug = "series_" + strconv.Itoa(idx)
	}
	return slug
}

// parseExportHeader validates an export header record and reconstructs a
// metric per series column. Column names carry the unit in a trailing
// parenthetical, like "Solar Power (W)". The first column must be the
// millisecond timestamp.
func parseExportHeader(record []string) ([]Metric, error) {
	if len(record) < 2 {
		return nil, fmt.Errorf("export header has %d columns, need at least 2", len(record))
	}
	if strings.TrimSpace(record[0]) != "timestamp_ms" {
		return nil, fmt.Errorf("export header starts with %q, want timestamp_ms", record[0])
	}
	metrics := make([]Metric, 0, len(record)-1)
	for i, raw := range record[1:] {
		name := strings.TrimSpace(raw)
		unit := ""
		if open := strings.LastIndex(name, "("); open >= 0 && strings.HasSuffix(name, ")") {
			unit = strings.TrimSpace(name[open+1 : len(name)-1])
		}
		metrics = append(metrics, Metric{
			Code: exportSeriesID(i, name),
			Name: name,
			Unit: unit,
		})
	}
	return metrics, nil
}

// parseExportRecord parses one data row into per-column samples. Blank
// cells become missing samples; they mean "no reading", not zero.
func parseExportRecord(record []string, columns int) (samples []Sample, err error) {
	if len(record) < 1 {
		return nil, errors.New("empty export record")
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", record[0], err)
	}
	samples = make([]Sample, columns)
	for i := range samples {
		samples[i] = Sample{TimestampMS: ts}
		if i+1 >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[i+1])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		samples[i].Value = v
		samples[i].Valid = true
	}
	return samples, nil
}

func (d *Datasource) readExport(source io.Reader, rows chan exportRow) {
	csvReader := csv.NewReader(NewLineReader(source))
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	header, err := csvReader.Read()
	if err != nil {
		log.Printf("failed reading export header: %v", err)
		return
	}
	metrics, err := parseExportHeader(header)
	if err != nil {
		log.Printf("rejecting export: %v", err)
		return
	}
	rows <- exportRow{metrics: metrics}
readLoop:
	for {
		record, err := csvReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				for ev := range d.watcher.Events {
					if ev.Op == fsnotify.Write {
						continue readLoop
					}
				}
			}
			log.Printf("could not read export data: %v", err)
			return
		}
		samples, err := parseExportRecord(record, len(metrics))
		if err != nil {
			log.Printf("skipping export record: %v", err)
			continue
		}
		for i, sample := range samples {
			rows <- exportRow{series: i, sample: sample}
		}
	}
}
