package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"FlowRank/internal/model"
)

// TextWriter prints one "Flux a:p,b:q / Taille : n" line per flow, smallest first.
type TextWriter struct {
	name string
	out  io.Writer
	file *os.File
}

// NewTextWriter writes to out.
func NewTextWriter(name string, out io.Writer) *TextWriter {
	return &TextWriter{name: name, out: out}
}

// OpenTextWriter writes to the file at path, truncating it, or to stdout when path is empty.
func OpenTextWriter(path string) (*TextWriter, error) {
	if path == "" || path == "-" {
		return NewTextWriter("stdout", os.Stdout), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file '%s': %w", path, err)
	}
	w := NewTextWriter(path, f)
	w.file = f
	return w, nil
}

func (w *TextWriter) Name() string { return "text:" + w.name }

func (w *TextWriter) Write(_ context.Context, report *model.Report) error {
	bw := bufio.NewWriter(w.out)
	for i := range report.Flows {
		if _, err := fmt.Fprintln(bw, report.Flows[i].Summary()); err != nil {
			return fmt.Errorf("failed to write flow: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (w *TextWriter) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
