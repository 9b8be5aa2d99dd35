package core

import (
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// NormalizeValue converts a driver or reader value into one of the scalar
// types carried by a Record: nil, string, int64, float64 or bool.
// Types without a scalar equivalent are formatted as strings.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return uint64ToValue(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return uint64ToValue(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case *big.Float:
		f, _ := val.Float64()
		return f
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func uint64ToValue(u uint64) any {
	if u > 1<<63-1 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}

// IsNumeric reports whether a normalized value is an int64 or float64.
func IsNumeric(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// AsFloat returns a numeric value as float64.
func AsFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

// TypeOf returns the DataType of a normalized value.
func TypeOf(v any) DataType {
	switch v.(type) {
	case string:
		return TypeString
	case int64:
		return TypeInteger
	case float64:
		return TypeFloat
	case bool:
		return TypeBoolean
	}
	return TypeUnknown
}

// FormatValue renders a normalized value for reports. Null renders as "NULL".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprintf("%v", v)
}
