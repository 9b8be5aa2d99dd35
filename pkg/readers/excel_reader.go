package readers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/recon/pkg/core"
	"github.com/xuri/excelize/v2"
)

// ExcelSource reads one or more sheets of an Excel workbook.
type ExcelSource struct {
	config core.SourceConfig
}

// NewExcelSource creates a new Excel source.
func NewExcelSource(config core.SourceConfig) (core.DatasetSource, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Excel source")
	}
	if config.SkipRows < 0 {
		return nil, fmt.Errorf("skip_rows must not be negative, got %d", config.SkipRows)
	}
	return &ExcelSource{config: config}, nil
}

// Load reads the configured sheets. Rows of several sheets are concatenated and
// their headers must agree.
func (s *ExcelSource) Load(ctx context.Context) (*core.Dataset, error) {
	f, err := excelize.OpenFile(s.config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets, err := s.sheets(f)
	if err != nil {
		return nil, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	var (
		header []string
		data   [][]string
	)
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Raw values keep numbers at full precision instead of their display text.
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		sheetHeader, sheetRows := s.split(rows)
		if i == 0 {
			header = sheetHeader
		} else if !slices.Equal(header, sheetHeader) {
			return nil, fmt.Errorf("sheet %q header %v does not match sheet %q header %v",
				sheet, sheetHeader, sheets[0], header)
		}
		for _, row := range decodeCells(f, sheet, sheetRows, date1904) {
			data = append(data, row.cells)
		}
	}

	width := len(header)
	for _, row := range data {
		width = max(width, len(row))
	}
	names := columnNames(header, width)
	types := inferTypes(width, data)

	selected, err := selectColumns(names, s.config.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.config.Path, err)
	}

	ds := &core.Dataset{Name: datasetName(s.config)}
	for _, idx := range selected {
		ds.Schema.Columns = append(ds.Schema.Columns, core.Column{Name: names[idx], Type: types[idx]})
	}
	for _, row := range data {
		rec := make(core.Record, len(selected))
		for _, idx := range selected {
			cell := ""
			if idx < len(row) {
				cell = row[idx]
			}
			rec[names[idx]] = parseCell(cell, types[idx])
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

func (s *ExcelSource) sheets(f *excelize.File) ([]string, error) {
	if len(s.config.SheetNames) > 0 {
		return s.config.SheetNames, nil
	}
	if s.config.SheetName != "" {
		return []string{s.config.SheetName}, nil
	}
	list := f.GetSheetList()
	if len(list) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", s.config.Path)
	}
	return list[:1], nil
}

// sheetRow is a data row together with its 1-based row number in the sheet.
type sheetRow struct {
	num   int
	cells []string
}

// split applies skip_rows, separates the header and drops blank rows.
func (s *ExcelSource) split(rows [][]string) ([]string, []sheetRow) {
	if s.config.SkipRows >= len(rows) {
		return nil, nil
	}
	first := s.config.SkipRows

	var header []string
	if s.config.Header() && first < len(rows) {
		header = rows[first]
		first++
	}

	data := make([]sheetRow, 0, len(rows)-first)
	for i := first; i < len(rows); i++ {
		if !blankRow(rows[i]) {
			data = append(data, sheetRow{num: i + 1, cells: rows[i]})
		}
	}
	return header, data
}

type cellKind int

const (
	cellPlain cellKind = iota
	cellBool
	cellDate
)

// decodeCells rewrites raw boolean cells as true/false and date serials as
// RFC 3339 timestamps. The kind of a column is taken from its first non-empty
// cell in the sheet.
func decodeCells(f *excelize.File, sheet string, rows []sheetRow, date1904 bool) []sheetRow {
	width := 0
	for _, row := range rows {
		width = max(width, len(row.cells))
	}

	for col := 0; col < width; col++ {
		kind := cellPlain
		for _, row := range rows {
			if col < len(row.cells) && row.cells[col] != "" {
				kind = kindOf(f, sheet, col+1, row.num)
				break
			}
		}
		if kind == cellPlain {
			continue
		}
		for _, row := range rows {
			if col < len(row.cells) && row.cells[col] != "" {
				row.cells[col] = decodeCell(row.cells[col], kind, date1904)
			}
		}
	}
	return rows
}

func kindOf(f *excelize.File, sheet string, col, row int) cellKind {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return cellPlain
	}
	if typ, err := f.GetCellType(sheet, cell); err == nil && typ == excelize.CellTypeBool {
		return cellBool
	}
	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return cellPlain
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return cellPlain
	}
	if isDateFormat(style.NumFmt, style.CustomNumFmt) {
		return cellDate
	}
	return cellPlain
}

func decodeCell(raw string, kind cellKind, date1904 bool) string {
	switch kind {
	case cellBool:
		switch raw {
		case "1":
			return "true"
		case "0":
			return "false"
		}
	case cellDate:
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return raw
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	return raw
}

var formatLiterals = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

// isDateFormat reports whether a number format renders dates or times.
// Built-in ids 14-22 and 45-47 are date and time formats.
func isDateFormat(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		code := strings.ToLower(formatLiterals.ReplaceAllString(*custom, ""))
		return strings.ContainsAny(code, "ydh") || strings.Contains(code, "ss")
	}
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

// Close releases resources held by the source.
func (s *ExcelSource) Close() error {
	return nil
}
