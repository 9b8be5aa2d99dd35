package readers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func load(t *testing.T, config core.SourceConfig) *core.Dataset {
	t.Helper()
	src, err := Open(config)
	require.NoError(t, err)
	defer src.Close()

	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	return ds
}

func TestFactory(t *testing.T) {
	assert.Equal(t, []string{"adbc", "arrow", "csv", "excel", "mysql", "oracle", "parquet", "postgres", "sqlserver"},
		DefaultFactory.Types())
	assert.True(t, DefaultFactory.Supports("auto"))
	assert.True(t, DefaultFactory.Supports("CSV"))
	assert.False(t, DefaultFactory.Supports("sqlite"))

	_, err := DefaultFactory.Create(core.SourceConfig{Type: "sqlite"})
	assert.EqualError(t, err, "unsupported source type: sqlite")

	f := NewFactory()
	called := false
	f.Register("memory", func(config core.SourceConfig) (core.DatasetSource, error) {
		called = true
		return nil, nil
	})
	_, err = f.Create(core.SourceConfig{Type: "memory"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestDetectType(t *testing.T) {
	tests := map[string]string{
		"data.csv":          TypeCSV,
		"DATA.XLSX":         TypeExcel,
		"part-0.parquet":    TypeParquet,
		"batches.arrow":     TypeArrow,
		"/tmp/out.feather":  TypeArrow,
		"report.tsv":        TypeCSV,
		"legacy/report.xls": TypeExcel,
	}
	for path, want := range tests {
		got, err := DetectType(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := DetectType("data.json")
	assert.Error(t, err)
	_, err = DetectType("")
	assert.Error(t, err)
}

func TestCSVSource(t *testing.T) {
	path := writeFile(t, "accounts.csv", "# exported\n"+
		"id,name,amount,active,note\n"+
		"1,Alice,100.5,true,\n"+
		"2,Bob,200,false,x\n"+
		"3,,,true,\n")

	ds := load(t, core.SourceConfig{Type: "auto", Path: path, SkipRows: 1})

	assert.Equal(t, "accounts.csv", ds.Name)
	assert.Equal(t, []core.Column{
		{Name: "id", Type: core.TypeInteger},
		{Name: "name", Type: core.TypeString},
		{Name: "amount", Type: core.TypeFloat},
		{Name: "active", Type: core.TypeBoolean},
		{Name: "note", Type: core.TypeString},
	}, ds.Schema.Columns)
	require.Equal(t, 3, ds.Len())

	assert.Equal(t, core.Record{"id": int64(1), "name": "Alice", "amount": 100.5, "active": true, "note": ""}, ds.Records[0])
	assert.Equal(t, 200.0, ds.Records[1]["amount"])
	assert.Equal(t, "", ds.Records[2]["name"])
	assert.Nil(t, ds.Records[2]["amount"])
}

func TestCSVSourceWithoutHeader(t *testing.T) {
	path := writeFile(t, "raw.txt", "1;a\n2;b\n")
	noHeader := false

	ds := load(t, core.SourceConfig{Type: "csv", Path: path, Delimiter: ";", HasHeader: &noHeader, Name: "raw"})

	assert.Equal(t, "raw", ds.Name)
	assert.Equal(t, []string{"column_1", "column_2"}, ds.Schema.Names())
	assert.Equal(t, core.Record{"column_1": int64(2), "column_2": "b"}, ds.Records[1])
}

func TestCSVSourceColumns(t *testing.T) {
	path := writeFile(t, "a.csv", "id,name,amount\n1,Alice,3\n")

	ds := load(t, core.SourceConfig{Type: "csv", Path: path, Columns: []string{"amount", "id"}})
	assert.Equal(t, []string{"amount", "id"}, ds.Schema.Names())
	assert.Equal(t, core.Record{"amount": int64(3), "id": int64(1)}, ds.Records[0])

	src, err := Open(core.SourceConfig{Type: "csv", Path: path, Columns: []string{"missing"}})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorContains(t, err, `column "missing" not found`)
}

func TestCSVSourceErrors(t *testing.T) {
	_, err := NewCSVSource(core.SourceConfig{})
	assert.Error(t, err)

	_, err = NewCSVSource(core.SourceConfig{Path: "x.csv", Delimiter: "::"})
	assert.Error(t, err)

	src, err := NewCSVSource(core.SourceConfig{Path: filepath.Join(t.TempDir(), "absent.csv")})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorContains(t, err, "failed to open CSV file")
}

func TestParseDelimiter(t *testing.T) {
	r, err := parseDelimiter(`\t`)
	require.NoError(t, err)
	assert.Equal(t, '\t', r)

	r, err = parseDelimiter("|")
	require.NoError(t, err)
	assert.Equal(t, '|', r)

	_, err = parseDelimiter(`"`)
	assert.Error(t, err)
}

func TestInference(t *testing.T) {
	types := inferTypes(5, [][]string{
		{"1", "1", "x", "true", ""},
		{"2", "1.5", "1", "false", ""},
		{"", "", "2", "", ""},
	})
	assert.Equal(t, []core.DataType{
		core.TypeInteger, core.TypeFloat, core.TypeString, core.TypeBoolean, core.TypeString,
	}, types)

	assert.Equal(t, core.TypeString, inferCell("NaN"))
	assert.Equal(t, core.TypeString, inferCell("inf"))
	assert.Equal(t, core.TypeFloat, inferCell("1e3"))

	assert.Nil(t, parseCell("", core.TypeInteger))
	assert.Equal(t, "", parseCell("", core.TypeString))
	assert.Equal(t, int64(-4), parseCell("-4", core.TypeInteger))
	assert.Equal(t, "abc", parseCell("abc", core.TypeFloat))
}

func writeWorkbook(t *testing.T, sheets map[string][][]any, order []string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExcelSource(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Accounts": {
			{"id", "name", "amount"},
			{1, "Alice", 10.5},
			{2, "Bob", 20},
		},
		"More": {
			{"id", "name", "amount"},
			{3, "Carol", 7.25},
		},
	}, []string{"Accounts", "More"})

	ds := load(t, core.SourceConfig{Path: path})
	assert.Equal(t, "book.xlsx", ds.Name)
	assert.Equal(t, []core.Column{
		{Name: "id", Type: core.TypeInteger},
		{Name: "name", Type: core.TypeString},
		{Name: "amount", Type: core.TypeFloat},
	}, ds.Schema.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, core.Record{"id": int64(1), "name": "Alice", "amount": 10.5}, ds.Records[0])

	both := load(t, core.SourceConfig{Type: "excel", Path: path, SheetNames: []string{"Accounts", "More"}})
	require.Equal(t, 3, both.Len())
	assert.Equal(t, "Carol", both.Records[2]["name"])

	second := load(t, core.SourceConfig{Type: "excel", Path: path, SheetName: "More", Columns: []string{"name"}})
	assert.Equal(t, []core.Record{{"name": "Carol"}}, second.Records)
}

func TestExcelSourceReadsStoredValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	rows := [][]any{
		{"id", "amount", "active", "opened"},
		{1, 1234.5, true, 45292},
		{2, 0.1234, false, 45292.5},
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}

	amountFmt := "#,##0.00"
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "B2", "B3", amountStyle))
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "D2", "D3", dateStyle))

	path := filepath.Join(t.TempDir(), "formatted.xlsx")
	require.NoError(t, f.SaveAs(path))

	ds := load(t, core.SourceConfig{Path: path})
	assert.Equal(t, []core.Column{
		{Name: "id", Type: core.TypeInteger},
		{Name: "amount", Type: core.TypeFloat},
		{Name: "active", Type: core.TypeBoolean},
		{Name: "opened", Type: core.TypeString},
	}, ds.Schema.Columns)
	assert.Equal(t, core.Record{
		"id":     int64(1),
		"amount": 1234.5,
		"active": true,
		"opened": "2024-01-01T00:00:00Z",
	}, ds.Records[0])
	assert.Equal(t, 0.1234, ds.Records[1]["amount"])
	assert.Equal(t, false, ds.Records[1]["active"])
	assert.Equal(t, "2024-01-01T12:00:00Z", ds.Records[1]["opened"])
}

func TestIsDateFormat(t *testing.T) {
	custom := func(s string) *string { return &s }
	assert.True(t, isDateFormat(14, nil))
	assert.True(t, isDateFormat(0, custom("yyyy-mm-dd hh:mm")))
	assert.False(t, isDateFormat(4, nil))
	assert.False(t, isDateFormat(0, custom("#,##0.00")))
	assert.False(t, isDateFormat(0, custom(`0.0 "days"`)))
	assert.False(t, isDateFormat(0, custom("[Red]0.00")))
}

func TestExcelSourceHeaderMismatch(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"A": {{"id", "name"}, {1, "x"}},
		"B": {{"id", "label"}, {2, "y"}},
	}, []string{"A", "B"})

	src, err := Open(core.SourceConfig{Type: "excel", Path: path, SheetNames: []string{"A", "B"}})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorContains(t, err, "does not match")
}

func testRecord(t *testing.T) (*arrow.Schema, arrow.Record) {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "active", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int32Builder).AppendValues([]int32{1, 2}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"Alice", ""}, []bool{true, false})
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{1.5, 2.5}, nil)
	b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{true, false}, nil)
	return schema, b.NewRecord()
}

func TestParquetSource(t *testing.T) {
	schema, rec := testRecord(t)
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "accounts.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	table := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer table.Release()
	require.NoError(t, pqarrow.WriteTable(table, f, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))
	f.Close()

	ds := load(t, core.SourceConfig{Path: path})
	assert.Equal(t, []core.Column{
		{Name: "id", Type: core.TypeInteger},
		{Name: "name", Type: core.TypeString},
		{Name: "amount", Type: core.TypeFloat},
		{Name: "active", Type: core.TypeBoolean},
	}, ds.Schema.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, core.Record{"id": int64(1), "name": "Alice", "amount": 1.5, "active": true}, ds.Records[0])
	assert.Nil(t, ds.Records[1]["name"])
}

func TestArrowSource(t *testing.T) {
	schema, rec := testRecord(t)
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "accounts.arrow")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema))
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	f.Close()

	ds := load(t, core.SourceConfig{Path: path, Columns: []string{"id", "amount"}})
	require.Equal(t, 4, ds.Len())
	assert.Equal(t, []string{"id", "amount"}, ds.Schema.Names())
	assert.Equal(t, core.Record{"id": int64(2), "amount": 2.5}, ds.Records[3])
}

func TestADBCSourceValidation(t *testing.T) {
	_, err := NewADBCSource(core.SourceConfig{Type: "adbc", DriverPath: "/opt/libadbc.so"})
	assert.ErrorContains(t, err, "either query or table")

	src, err := NewADBCSource(core.SourceConfig{Type: "adbc", DriverPath: "/opt/libadbc.so", Query: "SELECT 1"})
	require.NoError(t, err)
	assert.NoError(t, src.Close())
}
