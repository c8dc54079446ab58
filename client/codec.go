package client

import (
	"fmt"

	"github.com/asiminischi/informix-proxy/wire"
)

func encodeParameters(args []any) []wire.Parameter {
	if len(args) == 0 {
		return nil
	}
	params := make([]wire.Parameter, len(args))
	for i, arg := range args {
		params[i] = encodeParameter(arg)
	}
	return params
}

// encodeParameter maps a Go argument to its wire variant. All signed and
// unsigned integer widths travel as int64 and float32 widens to double.
// Unrecognised types fall back to their fmt string form, which the backend
// coerces the way it coerces any string literal.
func encodeParameter(arg any) wire.Parameter {
	if arg == nil {
		return wire.Parameter{Tag: wire.ParameterTagNull}
	}
	switch v := arg.(type) {
	case string:
		return wire.Parameter{Tag: wire.ParameterTagString, StringValue: v}
	case bool:
		return wire.Parameter{Tag: wire.ParameterTagBool, BoolValue: v}
	case int:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case int8:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case int16:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case int32:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case int64:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: v}
	case uint:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case uint8:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case uint16:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case uint32:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case uint64:
		return wire.Parameter{Tag: wire.ParameterTagInt, IntValue: int64(v)}
	case float32:
		return wire.Parameter{Tag: wire.ParameterTagDouble, DoubleValue: float64(v)}
	case float64:
		return wire.Parameter{Tag: wire.ParameterTagDouble, DoubleValue: v}
	case []byte:
		return wire.Parameter{Tag: wire.ParameterTagBytes, BytesValue: v}
	default:
		return wire.Parameter{Tag: wire.ParameterTagString, StringValue: fmt.Sprintf("%v", arg)}
	}
}

// decodeValue maps a wire value to its Go representation. The null flag wins
// over any data tag, and a value with no data tag decodes as nil.
func decodeValue(v *wire.Value) any {
	if v.IsNull {
		return nil
	}
	switch v.Tag {
	case wire.ValueTagString:
		return v.StringData
	case wire.ValueTagInt32:
		return v.Int32Data
	case wire.ValueTagInt64:
		return v.Int64Data
	case wire.ValueTagDouble:
		return v.DoubleData
	case wire.ValueTagBool:
		return v.BoolData
	case wire.ValueTagBytes:
		return v.BytesData
	default:
		return nil
	}
}
