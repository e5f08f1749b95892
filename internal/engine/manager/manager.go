// Package manager drives one ranking run: it feeds records from a source into
// a tracker and hands the final report to the writers.
//
// The tracker is owned by the goroutine executing Run. Other goroutines read
// it only through the query methods, which are executed by that goroutine
// between two records.
package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"FlowRank/internal/config"
	"FlowRank/internal/engine/tracker"
	"FlowRank/internal/model"

	"github.com/google/uuid"
)

// ErrNotStarted is returned by queries made before Run, once their context expires.
var ErrNotStarted = errors.New("manager is not running")

// Stats summarises the state of a run.
type Stats struct {
	Flows      int    `json:"flows"`
	Records    uint64 `json:"records"`
	Collisions uint64 `json:"collisions"`
	Running    bool   `json:"running"`
}

// Manager orchestrates a source, a tracker and a set of writers.
type Manager struct {
	source   model.Source
	writers  []model.Writer
	tracker  *tracker.Tracker
	progress uint64
	dump     io.Writer

	records chan model.FlowRecord
	queries chan func(*tracker.Tracker)
	started chan struct{}
	done    chan struct{}
	err     error
}

// NewManager creates a manager for one run.
func NewManager(cfg *config.Config, src model.Source, writers []model.Writer) *Manager {
	m := &Manager{
		source:   src,
		writers:  writers,
		tracker:  tracker.New(cfg.KeyEncoding()),
		progress: cfg.Manager.ProgressInterval,
		records:  make(chan model.FlowRecord, cfg.Manager.SizeOfRecordChannel),
		queries:  make(chan func(*tracker.Tracker)),
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	if cfg.Tracker.DumpRadix {
		m.dump = os.Stderr
	}
	return m
}

// Run ingests records until the source is exhausted or ctx is cancelled, then
// writes the report to every writer. Cancellation ends the run normally.
//
// When a record violates the ordering of its flow, Run stops at once and
// returns the *tracker.SequenceError; no report is written. Run must be
// called once.
func (m *Manager) Run(ctx context.Context) (*model.Report, error) {
	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- m.source.Run(srcCtx, m.records)
		close(m.records)
	}()
	log.Printf("Manager started, reading from %s with %s keys.", m.source.Name(), m.tracker.Encoding())
	close(m.started)

	err := m.loop()
	if err != nil {
		cancel()
		for range m.records {
		}
	}
	srcErr := <-errc
	if err == nil && srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		err = fmt.Errorf("source %s failed: %w", m.source.Name(), srcErr)
	}
	m.err = err
	close(m.done)

	if err != nil {
		return nil, err
	}
	log.Printf("Input exhausted: %d records, %d flows.", m.tracker.Records(), m.tracker.Len())

	if m.dump != nil {
		if err := m.tracker.DumpIndex(m.dump); err != nil {
			log.Printf("Error dumping radix index: %v", err)
		}
	}

	// Writers still run when the run ended through cancellation.
	report := m.report()
	return report, m.write(context.WithoutCancel(ctx), report)
}

func (m *Manager) loop() error {
	for {
		select {
		case rec, ok := <-m.records:
			if !ok {
				return nil
			}
			res, err := m.tracker.Observe(rec)
			if err != nil {
				return err
			}
			if res.Collision {
				log.Printf("Warning: key %s of %s is held by %s, merging.", res.Flow.Key, rec.FourTuple, res.Flow.FourTuple)
			}
			if n := m.tracker.Records(); m.progress > 0 && n%m.progress == 0 {
				log.Printf("%d records processed, %d flows tracked...", n, m.tracker.Len())
			}
		case q := <-m.queries:
			q(m.tracker)
		}
	}
}

func (m *Manager) report() *model.Report {
	return &model.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now(),
		Records:     m.tracker.Records(),
		Collisions:  m.tracker.Collisions(),
		Flows:       m.tracker.Snapshot(0, false),
	}
}

// write hands the report to every writer, continuing past failures.
func (m *Manager) write(ctx context.Context, report *model.Report) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(ctx, report); err != nil {
			log.Printf("Error writing report with %s: %v", w.Name(), err)
			errs = append(errs, fmt.Errorf("writer %s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer.
func (m *Manager) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("writer %s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Done is closed once ingestion has stopped.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Err returns why ingestion stopped, nil for a normal end. Valid after Done is closed.
func (m *Manager) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// query runs fn on the tracker from the ingestion goroutine, or directly once
// ingestion has stopped and the tracker can no longer change.
func (m *Manager) query(ctx context.Context, fn func(*tracker.Tracker)) error {
	select {
	case <-m.done:
		fn(m.tracker)
		return nil
	default:
	}

	reply := make(chan struct{})
	q := func(t *tracker.Tracker) {
		fn(t)
		close(reply)
	}
	select {
	case m.queries <- q:
		<-reply
		return nil
	case <-m.done:
		fn(m.tracker)
		return nil
	case <-ctx.Done():
		select {
		case <-m.started:
			return ctx.Err()
		default:
			return fmt.Errorf("%w: %w", ErrNotStarted, ctx.Err())
		}
	}
}

// Snapshot copies up to limit flows, all of them when limit <= 0, from the
// smallest or, when largest is set, from the largest.
func (m *Manager) Snapshot(ctx context.Context, limit int, largest bool) ([]model.Flow, error) {
	var flows []model.Flow
	err := m.query(ctx, func(t *tracker.Tracker) {
		flows = t.Snapshot(limit, largest)
	})
	return flows, err
}

// Stats returns the current counters.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := m.query(ctx, func(t *tracker.Tracker) {
		s = Stats{Flows: t.Len(), Records: t.Records(), Collisions: t.Collisions()}
	})
	select {
	case <-m.done:
	default:
		s.Running = true
	}
	return s, err
}

// DumpIndex writes the radix index to w. The dump is rendered in memory first
// so a slow w does not hold up ingestion.
func (m *Manager) DumpIndex(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	var dumpErr error
	if err := m.query(ctx, func(t *tracker.Tracker) {
		dumpErr = t.DumpIndex(&buf)
	}); err != nil {
		return err
	}
	if dumpErr != nil {
		return dumpErr
	}
	_, err := buf.WriteTo(w)
	return err
}
