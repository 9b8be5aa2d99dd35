package readers

import (
	"strconv"
	"strings"

	"github.com/TFMV/recon/pkg/core"
	"github.com/apache/arrow-go/v18/arrow"
)

// columnInference tracks the narrowest type able to hold every non-empty cell of a
// text column. Types widen integer -> float; any other conflict falls back to string.
type columnInference struct {
	typ  core.DataType
	seen bool
}

func (c *columnInference) observe(cell string) {
	if cell == "" || c.typ == core.TypeString {
		return
	}
	cellType := inferCell(cell)
	if !c.seen {
		c.typ, c.seen = cellType, true
		return
	}
	switch {
	case c.typ == cellType:
	case c.typ == core.TypeInteger && cellType == core.TypeFloat,
		c.typ == core.TypeFloat && cellType == core.TypeInteger:
		c.typ = core.TypeFloat
	default:
		c.typ = core.TypeString
	}
}

// result returns the inferred type; columns with no values are strings.
func (c *columnInference) result() core.DataType {
	if !c.seen {
		return core.TypeString
	}
	return c.typ
}

func inferCell(cell string) core.DataType {
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return core.TypeInteger
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil && !isSpecialFloat(cell) {
		return core.TypeFloat
	}
	if isBoolLiteral(cell) {
		return core.TypeBoolean
	}
	return core.TypeString
}

func isBoolLiteral(s string) bool {
	switch s {
	case "true", "True", "false", "False":
		return true
	}
	return false
}

// isSpecialFloat reports spellings of Inf and NaN, which are kept as text.
func isSpecialFloat(s string) bool {
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "inf", "infinity", "nan":
		return true
	}
	return false
}

// inferTypes infers one type per column from rows of text cells.
func inferTypes(width int, rows [][]string) []core.DataType {
	cols := make([]columnInference, width)
	for _, row := range rows {
		for i := 0; i < width && i < len(row); i++ {
			cols[i].observe(row[i])
		}
	}
	types := make([]core.DataType, width)
	for i := range cols {
		types[i] = cols[i].result()
	}
	return types
}

// parseCell converts a text cell to a value of the inferred type. Empty cells are
// null except in string columns, where they stay empty strings.
func parseCell(cell string, typ core.DataType) any {
	if cell == "" {
		if typ == core.TypeString {
			return ""
		}
		return nil
	}
	switch typ {
	case core.TypeInteger:
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return v
		}
	case core.TypeFloat:
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
	case core.TypeBoolean:
		if v, err := strconv.ParseBool(cell); err == nil {
			return v
		}
	}
	return cell
}

// arrowType maps an inferred column type to the Arrow type used to parse it.
func arrowType(typ core.DataType) arrow.DataType {
	switch typ {
	case core.TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case core.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case core.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	}
	return arrow.BinaryTypes.String
}

// columnNames returns the header names, or column_1..column_n without a header.
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	for i := range names {
		if header != nil && i < len(header) && header[i] != "" {
			names[i] = header[i]
		} else {
			names[i] = "column_" + strconv.Itoa(i+1)
		}
	}
	return names
}
