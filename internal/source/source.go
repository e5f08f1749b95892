// Package source provides the record sources selectable from the
// configuration: text lines, offline captures and a NATS subject.
package source

import (
	"context"
	"errors"

	"FlowRank/internal/config"
	"FlowRank/internal/factory"
	"FlowRank/internal/model"
	"FlowRank/internal/probe"
)

func init() {
	factory.RegisterSource("text", func(cfg *config.Config) (model.Source, error) {
		return OpenText(cfg.Source.Path)
	})
	factory.RegisterSource("pcap", func(cfg *config.Config) (model.Source, error) {
		return OpenPcap(cfg.Source.Path)
	})
	factory.RegisterSource("nats", func(cfg *config.Config) (model.Source, error) {
		sub, err := probe.NewSubscriber(cfg.Probe)
		if err != nil {
			return nil, err
		}
		return NewNATS(cfg.Probe.Subject, sub), nil
	})
}

// Each runs src and calls fn for every record in order. It stops at the
// first error from fn or src.
func Each(ctx context.Context, src model.Source, fn func(model.FlowRecord) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan model.FlowRecord, 256)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Run(ctx, records)
		close(records)
	}()

	var fnErr error
	for rec := range records {
		if fnErr != nil {
			continue
		}
		if fnErr = fn(rec); fnErr != nil {
			cancel()
		}
	}
	srcErr := <-errc
	if fnErr != nil {
		return fnErr
	}
	if errors.Is(srcErr, context.Canceled) {
		return nil
	}
	return srcErr
}
