// Package wire defines the messages exchanged with the database proxy and
// their binary encoding. Values travelling in either direction are tagged
// unions: exactly one variant of a Parameter or Value is populated at a
// time, with the null flag taking precedence over any data tag.
package wire

import (
	"github.com/asiminischi/informix-proxy/encoding"
)

// ParameterTag identifies which variant of a Parameter is populated.
type ParameterTag byte

const (
	ParameterTagNull   ParameterTag = 1
	ParameterTagString ParameterTag = 2
	ParameterTagBool   ParameterTag = 3
	ParameterTagInt    ParameterTag = 4
	ParameterTagDouble ParameterTag = 5
	ParameterTagBytes  ParameterTag = 6
)

// Parameter is a statement parameter in client-to-proxy direction.
type Parameter struct {
	Tag         ParameterTag
	StringValue string
	BoolValue   bool
	IntValue    int64
	DoubleValue float64
	BytesValue  []byte
}

func (p *Parameter) Serialize(buff []byte) []byte {
	buff = append(buff, byte(p.Tag))
	switch p.Tag {
	case ParameterTagString:
		buff = encoding.AppendStringToBufferLE(buff, p.StringValue)
	case ParameterTagBool:
		buff = encoding.AppendBoolToBuffer(buff, p.BoolValue)
	case ParameterTagInt:
		buff = encoding.AppendUint64ToBufferLE(buff, uint64(p.IntValue))
	case ParameterTagDouble:
		buff = encoding.AppendFloat64ToBufferLE(buff, p.DoubleValue)
	case ParameterTagBytes:
		buff = encoding.AppendBytesToBufferLE(buff, p.BytesValue)
	}
	return buff
}

func (p *Parameter) Deserialize(buff []byte, offset int) int {
	p.Tag = ParameterTag(buff[offset])
	offset++
	switch p.Tag {
	case ParameterTagString:
		p.StringValue, offset = encoding.ReadStringFromBufferLE(buff, offset)
	case ParameterTagBool:
		p.BoolValue, offset = encoding.ReadBoolFromBuffer(buff, offset)
	case ParameterTagInt:
		var u uint64
		u, offset = encoding.ReadUint64FromBufferLE(buff, offset)
		p.IntValue = int64(u)
	case ParameterTagDouble:
		p.DoubleValue, offset = encoding.ReadFloat64FromBufferLE(buff, offset)
	case ParameterTagBytes:
		p.BytesValue, offset = encoding.ReadBytesFromBufferLE(buff, offset)
	}
	return offset
}

// ValueTag identifies which data variant of a Value is populated. A Value
// whose IsNull flag is set carries no data variant regardless of Tag.
type ValueTag byte

const (
	ValueTagNone   ValueTag = 0
	ValueTagString ValueTag = 1
	ValueTagInt32  ValueTag = 2
	ValueTagInt64  ValueTag = 3
	ValueTagDouble ValueTag = 4
	ValueTagBool   ValueTag = 5
	ValueTagBytes  ValueTag = 6
)

// Value is one cell of a result row in proxy-to-client direction.
type Value struct {
	IsNull     bool
	Tag        ValueTag
	StringData string
	Int32Data  int32
	Int64Data  int64
	DoubleData float64
	BoolData   bool
	BytesData  []byte
}

func (v *Value) Serialize(buff []byte) []byte {
	buff = encoding.AppendBoolToBuffer(buff, v.IsNull)
	buff = append(buff, byte(v.Tag))
	switch v.Tag {
	case ValueTagString:
		buff = encoding.AppendStringToBufferLE(buff, v.StringData)
	case ValueTagInt32:
		buff = encoding.AppendUint32ToBufferLE(buff, uint32(v.Int32Data))
	case ValueTagInt64:
		buff = encoding.AppendUint64ToBufferLE(buff, uint64(v.Int64Data))
	case ValueTagDouble:
		buff = encoding.AppendFloat64ToBufferLE(buff, v.DoubleData)
	case ValueTagBool:
		buff = encoding.AppendBoolToBuffer(buff, v.BoolData)
	case ValueTagBytes:
		buff = encoding.AppendBytesToBufferLE(buff, v.BytesData)
	}
	return buff
}

func (v *Value) Deserialize(buff []byte, offset int) int {
	v.IsNull, offset = encoding.ReadBoolFromBuffer(buff, offset)
	v.Tag = ValueTag(buff[offset])
	offset++
	switch v.Tag {
	case ValueTagString:
		v.StringData, offset = encoding.ReadStringFromBufferLE(buff, offset)
	case ValueTagInt32:
		var u uint32
		u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
		v.Int32Data = int32(u)
	case ValueTagInt64:
		var u uint64
		u, offset = encoding.ReadUint64FromBufferLE(buff, offset)
		v.Int64Data = int64(u)
	case ValueTagDouble:
		v.DoubleData, offset = encoding.ReadFloat64FromBufferLE(buff, offset)
	case ValueTagBool:
		v.BoolData, offset = encoding.ReadBoolFromBuffer(buff, offset)
	case ValueTagBytes:
		v.BytesData, offset = encoding.ReadBytesFromBufferLE(buff, offset)
	}
	return offset
}

// ColumnMeta describes one result column. Type is the backend's type name
// as reported by the proxy (e.g. "VARCHAR", "SERIAL").
type ColumnMeta struct {
	Name      string
	Type      string
	Precision int32
	Scale     int32
	Nullable  bool
}

func (c *ColumnMeta) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, c.Name)
	buff = encoding.AppendStringToBufferLE(buff, c.Type)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(c.Precision))
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(c.Scale))
	return encoding.AppendBoolToBuffer(buff, c.Nullable)
}

func (c *ColumnMeta) Deserialize(buff []byte, offset int) int {
	c.Name, offset = encoding.ReadStringFromBufferLE(buff, offset)
	c.Type, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var u uint32
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	c.Precision = int32(u)
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	c.Scale = int32(u)
	c.Nullable, offset = encoding.ReadBoolFromBuffer(buff, offset)
	return offset
}

// Row is an ordered sequence of values, positionally aligned with the
// column metadata of the stream it arrived on.
type Row struct {
	Values []Value
}

func (r *Row) Serialize(buff []byte) []byte {
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(r.Values)))
	for i := range r.Values {
		buff = r.Values[i].Serialize(buff)
	}
	return buff
}

func (r *Row) Deserialize(buff []byte, offset int) int {
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	r.Values = make([]Value, n)
	for i := range r.Values {
		offset = r.Values[i].Deserialize(buff, offset)
	}
	return offset
}

// TableMeta describes one table returned by the metadata operation.
type TableMeta struct {
	Name    string
	Schema  string
	Type    string
	Columns []ColumnMeta
}

func (m *TableMeta) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, m.Name)
	buff = encoding.AppendStringToBufferLE(buff, m.Schema)
	buff = encoding.AppendStringToBufferLE(buff, m.Type)
	return serializeColumns(buff, m.Columns)
}

func (m *TableMeta) Deserialize(buff []byte, offset int) int {
	m.Name, offset = encoding.ReadStringFromBufferLE(buff, offset)
	m.Schema, offset = encoding.ReadStringFromBufferLE(buff, offset)
	m.Type, offset = encoding.ReadStringFromBufferLE(buff, offset)
	m.Columns, offset = deserializeColumns(buff, offset)
	return offset
}

func serializeColumns(buff []byte, columns []ColumnMeta) []byte {
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(columns)))
	for i := range columns {
		buff = columns[i].Serialize(buff)
	}
	return buff
}

func deserializeColumns(buff []byte, offset int) ([]ColumnMeta, int) {
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	if n == 0 {
		return nil, offset
	}
	columns := make([]ColumnMeta, n)
	for i := range columns {
		offset = columns[i].Deserialize(buff, offset)
	}
	return columns, offset
}
