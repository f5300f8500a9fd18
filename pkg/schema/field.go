package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldType is the inferred storage type of a field.
type FieldType int

const (
	FieldNull FieldType = iota
	FieldBool
	FieldInt
	FieldReal
	FieldString
)

func (t FieldType) String() string {
	switch t {
	case FieldNull:
		return "null"
	case FieldBool:
		return "bool"
	case FieldInt:
		return "int"
	case FieldReal:
		return "real"
	case FieldString:
		return "string"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is one column of a group.
type Field struct {
	Name string
	Type FieldType
}

// infer returns the type of a decoded JSON value and its normalised form:
// nil, bool, int64, float64 or string. Objects and arrays become JSON text.
func infer(v any) (FieldType, any) {
	switch x := v.(type) {
	case nil:
		return FieldNull, nil
	case bool:
		return FieldBool, x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return FieldInt, i
		}
		if f, err := x.Float64(); err == nil {
			return FieldReal, f
		}
		return FieldString, x.String()
	case float64:
		return FieldReal, x
	case int:
		return FieldInt, int64(x)
	case int64:
		return FieldInt, x
	case string:
		return FieldString, x
	default:
		return FieldString, text(v)
	}
}

// text renders a value for a field whose type it cannot be widened into.
func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
