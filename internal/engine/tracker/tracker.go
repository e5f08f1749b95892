// Package tracker deduplicates flow records by composite key and keeps the
// resulting flows ranked by size.
//
// A Tracker pairs a radix index, which maps each key to a ranking entry, with a
// ranking list that is re-sorted locally every time a flow grows. It owns the
// state of one run and must be driven from a single goroutine.
package tracker

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"iter"

	"FlowRank/internal/engine/radix"
	"FlowRank/internal/engine/ranklist"
	"FlowRank/internal/model"
)

// ErrOutOfOrder is matched by every *SequenceError.
var ErrOutOfOrder = errors.New("bad sequence number")

// SequenceError reports a record whose marker does not exceed the extent
// already recorded for its flow.
type SequenceError struct {
	Flow   model.Flow       // state of the flow before the offending record
	Record model.FlowRecord // the offending record
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("bad sequence number for flow %s: %d does not exceed %d",
		e.Flow.FourTuple, e.Record.Seq, e.Flow.Extent())
}

func (e *SequenceError) Unwrap() error { return ErrOutOfOrder }

// RecordFlow renders the offending record the way a fresh flow would be shown.
func (e *SequenceError) RecordFlow() *model.Flow {
	return &model.Flow{FourTuple: e.Record.FourTuple, First: e.Record.Seq}
}

// Result describes what Observe did with a record.
type Result struct {
	Flow *model.Flow
	// Created is set when the record opened a new flow.
	Created bool
	// Collision is set when the record's key was already held by a flow with
	// a different tuple. Only the variable key encoding can produce this; the
	// record is merged into the existing flow.
	Collision bool
}

// CompareFlows orders flows by Size.
func CompareFlows(a, b *model.Flow) int {
	return cmp.Compare(a.Size(), b.Size())
}

// Tracker holds the flows of one run.
type Tracker struct {
	encoding   model.KeyEncoding
	index      *radix.Tree[*ranklist.Entry[*model.Flow]]
	ranking    *ranklist.List[*model.Flow]
	records    uint64
	collisions uint64
}

// New creates an empty tracker keying flows with the given encoding.
func New(encoding model.KeyEncoding) *Tracker {
	return &Tracker{
		encoding: encoding,
		index:    radix.New[*ranklist.Entry[*model.Flow]](),
		ranking:  ranklist.New[*model.Flow](),
	}
}

// Observe applies one record. A record for a known flow must carry a marker
// strictly greater than the flow's extent; otherwise a *SequenceError is
// returned and the flow is left unchanged.
func (t *Tracker) Observe(rec model.FlowRecord) (Result, error) {
	key := rec.FourTuple.Key(t.encoding)
	id, existed, err := t.index.Insert(key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to index flow %s: %w", rec.FourTuple, err)
	}

	if !existed {
		flow := &model.Flow{
			FourTuple: rec.FourTuple,
			Key:       key,
			First:     rec.Seq,
			Records:   1,
			StartTime: rec.Timestamp,
			EndTime:   rec.Timestamp,
		}
		// A new flow has size 0, the minimum, so prepending keeps the order.
		t.index.Set(id, t.ranking.InsertEntry(flow))
		t.records++
		return Result{Flow: flow, Created: true}, nil
	}

	entry, ok := t.index.Value(id)
	if !ok {
		return Result{}, fmt.Errorf("index entry for key %s has no flow", key)
	}
	flow := entry.Value
	if rec.Seq <= flow.Extent() {
		return Result{Flow: flow}, &SequenceError{Flow: *flow, Record: rec}
	}

	res := Result{Flow: flow, Collision: flow.FourTuple != rec.FourTuple}
	if res.Collision {
		t.collisions++
	}
	flow.Last = rec.Seq
	flow.HasLast = true
	flow.Records++
	if rec.Timestamp.After(flow.EndTime) {
		flow.EndTime = rec.Timestamp
	}
	t.ranking.Reposition(entry, CompareFlows)
	t.records++
	return res, nil
}

// Len returns the number of distinct flows.
func (t *Tracker) Len() int { return t.ranking.Len() }

// Records returns the number of records applied.
func (t *Tracker) Records() uint64 { return t.records }

// Collisions returns the number of records merged into a flow with a different tuple.
func (t *Tracker) Collisions() uint64 { return t.collisions }

// Encoding returns the key encoding in use.
func (t *Tracker) Encoding() model.KeyEncoding { return t.encoding }

// Flows yields the flows from the smallest to the largest.
func (t *Tracker) Flows() iter.Seq[*model.Flow] { return t.ranking.All() }

// Largest yields the flows from the largest to the smallest.
func (t *Tracker) Largest() iter.Seq[*model.Flow] { return t.ranking.Backward() }

// Lookup returns the flow stored under the tuple's key.
func (t *Tracker) Lookup(ft model.FourTuple) (*model.Flow, bool) {
	id, ok := t.index.Lookup(ft.Key(t.encoding))
	if !ok {
		return nil, false
	}
	entry, ok := t.index.Value(id)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Snapshot copies up to limit flows in ranking order, all of them when limit <= 0.
// When largest is set the copy starts from the largest flow.
func (t *Tracker) Snapshot(limit int, largest bool) []model.Flow {
	n := t.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	seq := t.Flows()
	if largest {
		seq = t.Largest()
	}
	out := make([]model.Flow, 0, n)
	for f := range seq {
		if len(out) == n {
			break
		}
		out = append(out, *f)
	}
	return out
}

// DumpIndex writes the radix index, one node per line, to w.
func (t *Tracker) DumpIndex(w io.Writer) error {
	return t.index.Dump(w, func(e *ranklist.Entry[*model.Flow]) string {
		return "Flux: " + e.Value.String()
	})
}
