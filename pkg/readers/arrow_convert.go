package readers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// arrowDataType maps an Arrow type to the dataset column type.
func arrowDataType(dt arrow.DataType) core.DataType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return core.TypeInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return core.TypeFloat
	case arrow.BOOL:
		return core.TypeBoolean
	}
	return core.TypeString
}

// arrowValue returns the value at row i of arr as a record scalar.
func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return core.NormalizeValue(a.Value(i))
	case *array.Float16:
		return float64(a.Value(i).Float32())
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.LargeBinary:
		return string(a.Value(i))
	case *array.Decimal128, *array.Decimal256:
		s := arr.ValueStr(i)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	return arr.ValueStr(i)
}

// recordBuilder accumulates Arrow record batches into a Dataset.
type recordBuilder struct {
	ds      *core.Dataset
	include map[string]struct{}
	fields  []int
	names   []string
}

// newRecordBuilder prepares a dataset for the given Arrow schema. Columns restricts
// the output to the named columns; names, when set, replaces the Arrow field names.
func newRecordBuilder(name string, schema *arrow.Schema, columns, names []string) (*recordBuilder, error) {
	b := &recordBuilder{ds: &core.Dataset{Name: name}}

	fieldNames := names
	if fieldNames == nil {
		fieldNames = make([]string, schema.NumFields())
		for i, f := range schema.Fields() {
			fieldNames[i] = f.Name
		}
	}

	selected, err := selectColumns(fieldNames, columns)
	if err != nil {
		return nil, err
	}
	for _, idx := range selected {
		field := schema.Field(idx)
		b.fields = append(b.fields, idx)
		b.names = append(b.names, fieldNames[idx])
		b.ds.Schema.Columns = append(b.ds.Schema.Columns, core.Column{
			Name: fieldNames[idx],
			Type: arrowDataType(field.Type),
		})
	}
	return b, nil
}

func (b *recordBuilder) append(rec arrow.Record) {
	rows := int(rec.NumRows())
	for i := 0; i < rows; i++ {
		r := make(core.Record, len(b.fields))
		for j, idx := range b.fields {
			r[b.names[j]] = arrowValue(rec.Column(idx), i)
		}
		b.ds.Records = append(b.ds.Records, r)
	}
}

// datasetFromReader drains an Arrow record reader into a Dataset.
func datasetFromReader(ctx context.Context, name string, rr array.RecordReader, columns []string) (*core.Dataset, error) {
	b, err := newRecordBuilder(name, rr.Schema(), columns, nil)
	if err != nil {
		return nil, err
	}
	for rr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.append(rr.Record())
	}
	if err := rr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return b.ds, nil
}

// selectColumns returns the positions of the requested columns, or all positions
// when none are requested. Unknown columns are an error.
func selectColumns(available, requested []string) ([]int, error) {
	if len(requested) == 0 {
		idx := make([]int, len(available))
		for i := range available {
			idx[i] = i
		}
		return idx, nil
	}
	pos := make(map[string]int, len(available))
	for i, name := range available {
		pos[name] = i
	}
	idx := make([]int, 0, len(requested))
	for _, name := range requested {
		i, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		idx = append(idx, i)
	}
	return idx, nil
}
