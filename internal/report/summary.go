package report

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"FlowRank/internal/model"
)

const (
	summaryFile = "summary.json"
	flowsFile   = "flows.gob"
)

// SummaryData holds the metadata of a written report.
type SummaryData struct {
	RunID        string `json:"run_id"`
	TotalFlows   int    `json:"total_flows"`
	TotalRecords uint64 `json:"total_records"`
	Collisions   uint64 `json:"collisions"`
	LargestFlow  string `json:"largest_flow,omitempty"`
	LargestSize  uint64 `json:"largest_size"`
	Timestamp    string `json:"timestamp"`
}

// SummaryWriter stores each report in its own timestamped directory as a JSON
// summary plus a gob dump of the ranked flows.
type SummaryWriter struct {
	rootPath string
}

// NewSummaryWriter creates a writer rooted at rootPath.
func NewSummaryWriter(rootPath string) *SummaryWriter {
	return &SummaryWriter{rootPath: rootPath}
}

func (w *SummaryWriter) Name() string { return "summary:" + w.rootPath }

// Dir returns the directory a report is written to.
func (w *SummaryWriter) Dir(report *model.Report) string {
	return filepath.Join(w.rootPath, report.GeneratedAt.Format("2006-01-02_15-04-05")+"_"+report.RunID)
}

func (w *SummaryWriter) Write(_ context.Context, report *model.Report) error {
	dir := w.Dir(report)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if len(report.Flows) > 0 {
		path := filepath.Join(dir, flowsFile)
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create flows file '%s': %w", path, err)
		}
		defer file.Close()
		if err := gob.NewEncoder(file).Encode(report.Flows); err != nil {
			return fmt.Errorf("failed to encode flows to gob for file '%s': %w", path, err)
		}
	}

	summary := SummaryData{
		RunID:        report.RunID,
		TotalFlows:   len(report.Flows),
		TotalRecords: report.Records,
		Collisions:   report.Collisions,
		Timestamp:    report.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if n := len(report.Flows); n > 0 {
		largest := report.Flows[n-1]
		summary.LargestFlow = largest.FourTuple.String()
		summary.LargestSize = largest.Size()
	}

	summaryPath := filepath.Join(dir, summaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	log.Printf("Wrote report %s with %d flows to %s", report.RunID, len(report.Flows), dir)
	return nil
}

func (w *SummaryWriter) Close() error { return nil }

// ReadFlows loads the flows stored by a SummaryWriter in dir.
func ReadFlows(dir string) ([]model.Flow, error) {
	file, err := os.Open(filepath.Join(dir, flowsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var flows []model.Flow
	if err := gob.NewDecoder(file).Decode(&flows); err != nil {
		return nil, fmt.Errorf("failed to decode flows: %w", err)
	}
	return flows, nil
}
