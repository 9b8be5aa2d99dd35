package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetSummary    = "Summary"
	SheetMatched    = "Matched_Records"
	SheetMismatched = "Mismatched_Records"
	SheetMissing    = "Missing_in_Target"
	SheetExtra      = "Extra_in_Target"
)

// Row fills.
const (
	fillGreen  = "E2EFDA"
	fillRed    = "FFE6E6"
	fillYellow = "FFFF99"
)

// ExcelReportGenerator writes a workbook with a summary sheet and one sheet per
// record outcome. Data rows are filled green, red or yellow by outcome.
type ExcelReportGenerator struct {
	Options Options
}

func (e *ExcelReportGenerator) Extension() string { return "xlsx" }

// GenerateReport renders the run as an xlsx workbook.
func (e *ExcelReportGenerator) GenerateReport(run Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetMatched, SheetMismatched, SheetMissing, SheetExtra} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	w := &workbook{f: f, styles: make(map[string]int)}
	res := run.Result

	if err := w.summary(run); err != nil {
		return nil, err
	}

	source := recordLookup(run.Source, res.PrimaryKeys(), reconcile.RoleSource)
	target := recordLookup(run.Target, res.PrimaryKeys(), reconcile.RoleTarget)

	if err := w.records(SheetMatched, res.PrimaryKeys(), e.cap(res.MatchedKeys()), source, fillGreen); err != nil {
		return nil, err
	}
	if err := w.mismatches(res.PrimaryKeys(), res.MismatchDetails(), e.Options); err != nil {
		return nil, err
	}
	if err := w.records(SheetMissing, res.PrimaryKeys(), e.cap(res.MissingKeys()), source, fillYellow); err != nil {
		return nil, err
	}
	if err := w.records(SheetExtra, res.PrimaryKeys(), e.cap(res.ExtraKeys()), target, fillYellow); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *ExcelReportGenerator) cap(keys []reconcile.Key) []reconcile.Key {
	return keys[:e.Options.limit(len(keys))]
}

// lookup resolves a key to its full record. A nil lookup means only keys are known.
type lookup struct {
	columns []string
	index   *reconcile.KeyIndex
}

func recordLookup(ds *core.Dataset, primaryKeys []string, role reconcile.Role) *lookup {
	if ds == nil {
		return nil
	}
	index, err := reconcile.BuildIndex(ds, primaryKeys, role)
	if err != nil {
		return nil
	}
	return &lookup{columns: ds.Schema.Names(), index: index}
}

type workbook struct {
	f      *excelize.File
	styles map[string]int
}

func (w *workbook) style(color string) (int, error) {
	if id, ok := w.styles[color]; ok {
		return id, nil
	}
	style := &excelize.Style{}
	if color == "" {
		style.Font = &excelize.Font{Bold: true}
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{"F4F4F4"}, Pattern: 1}
	} else {
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}
	id, err := w.f.NewStyle(style)
	if err != nil {
		return 0, err
	}
	w.styles[color] = id
	return id, nil
}

// row writes values starting at column A of the given row and fills them.
// An empty color marks a header row.
func (w *workbook) row(sheet string, n int, values []any, color string) error {
	start, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, start, &values); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(max(len(values), 1), n)
	if err != nil {
		return err
	}
	id, err := w.style(color)
	if err != nil {
		return err
	}
	return w.f.SetCellStyle(sheet, start, end, id)
}

func (w *workbook) summary(run Run) error {
	res := run.Result
	m := res.Metrics()
	rows := [][]any{
		{"Run ID", run.ID},
		{"Comparison", run.Name},
		{"Source Name", res.SourceName()},
		{"Target Name", res.TargetName()},
		{"Execution Time", run.StartedAt.Format(time.RFC3339)},
		{"Duration (ms)", res.Duration().Milliseconds()},
		{"Total Source Records", res.TotalSourceRecords()},
		{"Total Target Records", res.TotalTargetRecords()},
		{"Matched Records", res.MatchedRecords()},
		{"Mismatched Records", res.MismatchedRecords()},
		{"Missing Records", res.MissingRecords()},
		{"Extra Records", res.ExtraRecords()},
		{"Match Percentage", m.MatchPercentage},
		{"Mismatch Percentage", m.MismatchPercentage},
		{"Record Diff Percentage", m.RecordDiffPercentage},
		{"Missing Percentage", m.MissingPercentage},
		{"Primary Keys", strings.Join(res.PrimaryKeys(), ", ")},
		{"Compared Columns", strings.Join(res.ComparedColumns(), ", ")},
		{"Overall Status", string(res.Status())},
	}
	for _, v := range res.Violations() {
		rows = append(rows, []any{"Violation", v.String()})
	}

	if err := w.row(SheetSummary, 1, []any{"Metric", "Value"}, ""); err != nil {
		return err
	}
	status := fillGreen
	if !res.Passed() {
		status = fillRed
	}
	for i, r := range rows {
		if r[0] == "Overall Status" {
			if err := w.row(SheetSummary, i+2, r, status); err != nil {
				return err
			}
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(SheetSummary, cell, &r); err != nil {
			return err
		}
	}
	return w.f.SetColWidth(SheetSummary, "A", "B", 28)
}

func (w *workbook) records(sheet string, primaryKeys []string, keys []reconcile.Key, src *lookup, color string) error {
	header := primaryKeys
	if src != nil {
		header = src.columns
	}
	if err := w.row(sheet, 1, strs(header), ""); err != nil {
		return err
	}
	for i, key := range keys {
		values := key.Values()
		if src != nil {
			rec, ok := src.index.Lookup(key)
			if !ok {
				return fmt.Errorf("record %s not found in %s", key, src.index.Role())
			}
			values = make([]any, len(src.columns))
			for j, col := range src.columns {
				values[j] = rec[col]
			}
		}
		if err := w.row(sheet, i+2, values, color); err != nil {
			return err
		}
	}
	return nil
}

func (w *workbook) mismatches(primaryKeys []string, details []reconcile.MismatchDetail, opts Options) error {
	header := append(strs(primaryKeys), "Column", "Source_Value", "Target_Value", "Kind")
	if err := w.row(SheetMismatched, 1, header, ""); err != nil {
		return err
	}
	for i, d := range details[:opts.limit(len(details))] {
		values := append(d.Key.Values(),
			d.Column,
			core.FormatValue(d.SourceValue),
			core.FormatValue(d.TargetValue),
			string(d.Kind),
		)
		if err := w.row(SheetMismatched, i+2, values, fillRed); err != nil {
			return err
		}
	}
	return nil
}

func strs(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
