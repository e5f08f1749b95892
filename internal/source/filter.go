package source

import (
	"context"
	"log"
	"sync/atomic"

	"FlowRank/internal/config"
	"FlowRank/internal/factory"
	"FlowRank/internal/model"

	"github.com/gaissmai/bart"
)

// Filter matches flow endpoints against include and exclude prefix tables.
type Filter struct {
	include *bart.Table[struct{}]
	exclude *bart.Table[struct{}]
}

// NewFilter builds a filter from the configured prefixes. It returns nil when
// both lists are empty.
func NewFilter(cfg config.FilterConfig) (*Filter, error) {
	include, err := config.ParsePrefixes(cfg.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := config.ParsePrefixes(cfg.Exclude)
	if err != nil {
		return nil, err
	}
	if len(include) == 0 && len(exclude) == 0 {
		return nil, nil
	}

	f := &Filter{}
	if len(include) > 0 {
		f.include = new(bart.Table[struct{}])
		for _, pfx := range include {
			f.include.Insert(pfx, struct{}{})
		}
	}
	if len(exclude) > 0 {
		f.exclude = new(bart.Table[struct{}])
		for _, pfx := range exclude {
			f.exclude.Insert(pfx, struct{}{})
		}
	}
	return f, nil
}

// Match reports whether a record for ft passes the filter.
func (f *Filter) Match(ft model.FourTuple) bool {
	src, dst := model.IPv4(ft.SrcIP), model.IPv4(ft.DstIP)
	if f.exclude != nil && (f.exclude.Contains(src) || f.exclude.Contains(dst)) {
		return false
	}
	if f.include != nil {
		return f.include.Contains(src) || f.include.Contains(dst)
	}
	return true
}

// Filtered forwards the records of a source that pass a filter.
type Filtered struct {
	src     model.Source
	filter  *Filter
	dropped atomic.Uint64
}

// NewFiltered wraps src with f.
func NewFiltered(src model.Source, f *Filter) *Filtered {
	return &Filtered{src: src, filter: f}
}

func (s *Filtered) Name() string { return s.src.Name() }

// Dropped returns the number of records rejected by the filter.
func (s *Filtered) Dropped() uint64 { return s.dropped.Load() }

func (s *Filtered) Run(ctx context.Context, out chan<- model.FlowRecord) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan model.FlowRecord, cap(out))
	errc := make(chan error, 1)
	go func() {
		errc <- s.src.Run(ctx, in)
		close(in)
	}()

	for rec := range in {
		if !s.filter.Match(rec.FourTuple) {
			s.dropped.Add(1)
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			// Unblock the inner source, then let it finish.
			cancel()
			for range in {
			}
			<-errc
			return ctx.Err()
		}
	}
	err := <-errc
	if n := s.dropped.Load(); n > 0 {
		log.Printf("Filter dropped %d records from %s.", n, s.src.Name())
	}
	return err
}

// Open creates the configured source, wrapped with the configured filter if any.
func Open(cfg *config.Config) (model.Source, error) {
	src, err := factory.NewSource(cfg)
	if err != nil {
		return nil, err
	}
	f, err := NewFilter(cfg.Source.Filter)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return src, nil
	}
	return NewFiltered(src, f), nil
}
