package model

import "context"

// Source produces flow records, for example from a capture file or a message bus.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Run sends records to out until the input is exhausted, ctx is cancelled or
	// an unrecoverable error occurs. It must not close out.
	Run(ctx context.Context, out chan<- FlowRecord) error
}
