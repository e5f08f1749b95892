package model

import "context"

// Writer defines a generic interface for persisting or printing a ranked report.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Write takes a report and emits it. The flows are ordered from the
	// smallest to the largest.
	Write(ctx context.Context, report *Report) error

	// Close releases any resource held by the writer.
	Close() error
}
