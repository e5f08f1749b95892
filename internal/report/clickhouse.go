package report

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"FlowRank/internal/config"
	"FlowRank/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    RunID       String,
    GeneratedAt DateTime,
    Rank        UInt32,
    FlowKey     String,
    SrcIP       String,
    DstIP       String,
    SrcPort     UInt16,
    DstPort     UInt16,
    FirstSeq    UInt32,
    LastSeq     UInt32,
    Size        UInt64,
    Records     UInt64,
    StartTime   DateTime,
    EndTime     DateTime
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (RunID, Rank);
`

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseWriter stores every flow of a report as one row, ranked from the
// largest (rank 1) down.
type ClickHouseWriter struct {
	conn  driver.Conn
	table string
}

// NewClickHouseWriter connects to ClickHouse and ensures the table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name '%s'", cfg.Table)
	}
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), fmt.Sprintf(createTableStatement, cfg.Table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, table: cfg.Table}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse:" + w.table }

// Write inserts the flows of the report into the configured table.
func (w *ClickHouseWriter) Write(ctx context.Context, report *model.Report) error {
	rows := rows(report)
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d flows to ClickHouse table '%s'", len(rows), w.table)
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// rows flattens a report in table column order, largest flow first.
func rows(report *model.Report) [][]any {
	out := make([][]any, 0, len(report.Flows))
	for i := len(report.Flows) - 1; i >= 0; i-- {
		f := report.Flows[i]
		out = append(out, []any{
			report.RunID,
			report.GeneratedAt,
			uint32(len(out) + 1),
			f.Key,
			model.IPv4(f.FourTuple.SrcIP).String(),
			model.IPv4(f.FourTuple.DstIP).String(),
			f.FourTuple.SrcPort,
			f.FourTuple.DstPort,
			f.First,
			f.Last,
			f.Size(),
			f.Records,
			f.StartTime,
			f.EndTime,
		})
	}
	return out
}
