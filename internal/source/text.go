package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"FlowRank/internal/engine/protocol"
	"FlowRank/internal/model"
)

const maxLineSize = 1 << 20

// Text reads one record per line in the form "a.b.c.d:port,e.f.g.h:port,seq".
// Blank lines are ignored and malformed lines are logged and skipped.
type Text struct {
	name    string
	r       io.Reader
	closer  io.Closer
	skipped uint64
}

// NewText reads records from r.
func NewText(name string, r io.Reader) *Text {
	return &Text{name: name, r: r}
}

// OpenText reads records from the file at path, or from stdin when path is empty or "-".
func OpenText(path string) (*Text, error) {
	if path == "" || path == "-" {
		return NewText("stdin", os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	t := NewText(path, f)
	t.closer = f
	return t, nil
}

func (t *Text) Name() string { return "text:" + t.name }

// Skipped returns the number of malformed lines seen so far.
func (t *Text) Skipped() uint64 { return t.skipped }

func (t *Text) Run(ctx context.Context, out chan<- model.FlowRecord) error {
	if t.closer != nil {
		defer t.closer.Close()
	}

	scanner := bufio.NewScanner(t.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := protocol.ParseLine(line)
		if err != nil {
			t.skipped++
			log.Printf("Warning: skipping line %d of %s: %v", lineNo, t.name, err)
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", t.name, err)
	}
	return nil
}
