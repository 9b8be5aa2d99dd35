package report

import (
	"encoding/json"
	"os"

	"github.com/TFMV/recon/pkg/reconcile"
)

// JSONReportGenerator generates JSON reports holding the full result.
type JSONReportGenerator struct{}

type jsonReport struct {
	Metadata Metadata                    `json:"metadata"`
	Result   *reconcile.ComparisonResult `json:"result"`
}

// GenerateReport serializes the run metadata and result to JSON.
func (j *JSONReportGenerator) GenerateReport(run Run) ([]byte, error) {
	return json.MarshalIndent(jsonReport{Metadata: run.Metadata(), Result: run.Result}, "", "  ")
}

func (j *JSONReportGenerator) Extension() string { return "json" }

// Document is a JSON report read back from disk.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Result   struct {
		Status     reconcile.Status      `json:"status"`
		Reason     string                `json:"reason"`
		Counts     reconcile.Counts      `json:"counts"`
		Metrics    reconcile.Metrics     `json:"metrics"`
		Violations []reconcile.Violation `json:"violations"`
	} `json:"result"`
}

// ReportFromFilePath loads a JSON report written by JSONReportGenerator.
func ReportFromFilePath(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
