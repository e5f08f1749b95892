// Package report renders the ranked flows of a run: a text listing, a JSON
// summary with a gob dump, and ClickHouse rows.
package report

import (
	"bufio"
	"fmt"
	"io"

	"FlowRank/internal/config"
	"FlowRank/internal/engine/tracker"
	"FlowRank/internal/factory"
	"FlowRank/internal/model"
)

func init() {
	factory.RegisterWriter("text", func(_ *config.Config, def config.WriterDef) (model.Writer, error) {
		return OpenTextWriter(def.Text.Path)
	})
	factory.RegisterWriter("summary", func(_ *config.Config, def config.WriterDef) (model.Writer, error) {
		return NewSummaryWriter(def.Summary.RootPath), nil
	})
	factory.RegisterWriter("clickhouse", func(_ *config.Config, def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

const separator = "--------------------"

// FormatViolation prints a bad sequence: a header, the stored flow, the
// offending record and a separator line.
func FormatViolation(w io.Writer, err *tracker.SequenceError) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Packet - Bad sequence number")
	fmt.Fprintln(bw, err.Flow.String())
	fmt.Fprintln(bw, err.RecordFlow().String())
	fmt.Fprintln(bw, separator)
	return bw.Flush()
}
