package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FlowRank/internal/config"
	"FlowRank/internal/engine/tracker"
	"FlowRank/internal/factory"
	"FlowRank/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	small = model.Flow{
		FourTuple: model.FourTuple{SrcIP: 0x0A000001, DstIP: 0x0A000002, SrcPort: 22, DstPort: 50000},
		Key:       "0A0000010A0000020016C350",
		First:     7,
		Records:   1,
	}
	large = model.Flow{
		FourTuple: model.FourTuple{SrcIP: 0xC0A80001, DstIP: 0x08080808, SrcPort: 40000, DstPort: 443},
		Key:       "C0A80001080808089C4001BB",
		First:     100,
		Last:      160,
		HasLast:   true,
		Records:   3,
		StartTime: time.Unix(100, 0).UTC(),
		EndTime:   time.Unix(160, 0).UTC(),
	}
)

func testReport() *model.Report {
	return &model.Report{
		RunID:       "6f1c1b0e-9a0c-4b9a-8d1e-2f9e0e6f7a11",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Records:     4,
		Flows:       []model.Flow{small, large},
	}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter("buf", &buf)
	require.NoError(t, w.Write(context.Background(), testReport()))
	assert.Equal(t,
		"Flux 10.0.0.1:22,10.0.0.2:50000 / Taille : 0\n"+
			"Flux 192.168.0.1:40000,8.8.8.8:443 / Taille : 60\n",
		buf.String())
	assert.NoError(t, w.Close())
}

func TestTextWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	w, err := OpenTextWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), testReport()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Taille : 60")
}

func TestSummaryWriter(t *testing.T) {
	root := t.TempDir()
	w := NewSummaryWriter(root)
	report := testReport()
	require.NoError(t, w.Write(context.Background(), report))

	dirs, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	dir := filepath.Join(root, dirs[0].Name())
	assert.Equal(t, w.Dir(report), dir)

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var summary SummaryData
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, SummaryData{
		RunID:        report.RunID,
		TotalFlows:   2,
		TotalRecords: 4,
		LargestFlow:  "192.168.0.1:40000,8.8.8.8:443",
		LargestSize:  60,
		Timestamp:    "2024-05-01T12:00:00Z",
	}, summary)

	flows, err := ReadFlows(dir)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, small.FourTuple, flows[0].FourTuple)
	assert.Equal(t, uint64(60), flows[1].Size())
	assert.True(t, large.EndTime.Equal(flows[1].EndTime))
}

func TestSummaryWriter_EmptyReport(t *testing.T) {
	root := t.TempDir()
	w := NewSummaryWriter(root)
	report := &model.Report{RunID: "empty", GeneratedAt: time.Now()}
	require.NoError(t, w.Write(context.Background(), report))

	_, err := os.Stat(filepath.Join(w.Dir(report), "summary.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(w.Dir(report), "flows.gob"))
	assert.True(t, os.IsNotExist(err), "flows.gob must not be written for an empty report")
}

func TestRows_LargestFirst(t *testing.T) {
	report := testReport()
	got := rows(report)
	require.Len(t, got, 2)

	assert.Equal(t, []any{
		report.RunID, report.GeneratedAt, uint32(1), large.Key,
		"192.168.0.1", "8.8.8.8", uint16(40000), uint16(443),
		uint32(100), uint32(160), uint64(60), uint64(3),
		large.StartTime, large.EndTime,
	}, got[0])
	assert.Equal(t, uint32(2), got[1][2])
	assert.Equal(t, uint64(0), got[1][10])
}

func TestNewClickHouseWriter_RejectsBadTable(t *testing.T) {
	_, err := NewClickHouseWriter(config.ClickHouseConfig{Host: "localhost", Port: 9000, Table: "flows; DROP TABLE x"})
	assert.ErrorContains(t, err, "invalid table name")
}

func TestFormatViolation(t *testing.T) {
	var buf bytes.Buffer
	err := &tracker.SequenceError{
		Flow:   large,
		Record: model.FlowRecord{FourTuple: large.FourTuple, Seq: 150},
	}
	require.NoError(t, FormatViolation(&buf, err))
	assert.Equal(t,
		"Packet - Bad sequence number\n"+
			"192.168.0.1:40000 8.8.8.8:443 - 100 - 160\n"+
			"192.168.0.1:40000 8.8.8.8:443 - 150 - 0\n"+
			"--------------------\n",
		buf.String())
}

func TestFactory_RegistersWriters(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{Writers: []config.WriterDef{
		{Type: "text", Enabled: true, Text: config.TextWriterConfig{Path: filepath.Join(root, "out.txt")}},
		{Type: "summary", Enabled: true, Summary: config.SummaryWriterConfig{RootPath: root}},
		{Type: "clickhouse", Enabled: true, ClickHouse: config.ClickHouseConfig{Table: "bad name"}},
	}}
	ws := factory.NewWriters(cfg)
	require.Len(t, ws, 2, "the clickhouse writer fails to initialise and is skipped")
	assert.Equal(t, "text:"+filepath.Join(root, "out.txt"), ws[0].Name())
	assert.Equal(t, "summary:"+root, ws[1].Name())
	for _, w := range ws {
		assert.NoError(t, w.Close())
	}
}
