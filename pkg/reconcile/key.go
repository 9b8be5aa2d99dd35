package reconcile

import (
	"math"
	"strconv"
	"strings"

	"github.com/TFMV/recon/pkg/core"
)

// Key is a primary key tuple, one value per primary key column.
type Key []any

// String renders the key for messages: a single value as-is, a composite key as a tuple.
func (k Key) String() string {
	if len(k) == 1 {
		return core.FormatValue(k[0])
	}
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = core.FormatValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Values returns a copy of the key values.
func (k Key) Values() []any {
	return append([]any(nil), k...)
}

func (k Key) clone() Key {
	return Key(k.Values())
}

// encodeKey returns the canonical map key for a tuple. Each value is tagged with its
// kind and strings are length-prefixed, so distinct tuples never share an encoding.
// Integral floats encode as integers so 1 and 1.0 identify the same record.
func encodeKey(k Key) string {
	var b strings.Builder
	for _, v := range k {
		switch val := v.(type) {
		case string:
			b.WriteString("s")
			b.WriteString(strconv.Itoa(len(val)))
			b.WriteByte(':')
			b.WriteString(val)
		case int64:
			b.WriteString("n:")
			b.WriteString(strconv.FormatInt(val, 10))
		case float64:
			if val == math.Trunc(val) && math.Abs(val) < 1<<63 {
				b.WriteString("n:")
				b.WriteString(strconv.FormatInt(int64(val), 10))
			} else {
				b.WriteString("f:")
				b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
			}
		case bool:
			b.WriteString("b:")
			b.WriteString(strconv.FormatBool(val))
		default:
			s := core.FormatValue(val)
			b.WriteString("x")
			b.WriteString(strconv.Itoa(len(s)))
			b.WriteByte(':')
			b.WriteString(s)
		}
		b.WriteByte('|')
	}
	return b.String()
}
