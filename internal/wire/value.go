// Package wire implements the binary message schema exchanged between
// client and server: Value, KvPair, CommandRequest and CommandResponse,
// encoded with the proto3 wire format (tag/varint/length-delimited) via
// google.golang.org/protobuf/encoding/protowire. There is no .proto file
// and no generated code: the field numbers below are the wire contract,
// and any standard protobuf decoder would parse these messages the same
// way a generated one would.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind discriminates the Value oneof.
type Kind int

const (
	// KindNone marks an unset/absent value, distinct from any zero value.
	KindNone Kind = iota
	KindString
	KindBinary
	KindInteger
	KindFloat
	KindBool
)

const (
	fieldValueString  protowire.Number = 1
	fieldValueBinary  protowire.Number = 2
	fieldValueInteger protowire.Number = 3
	fieldValueFloat   protowire.Number = 4
	fieldValueBool    protowire.Number = 5
)

// Value is an immutable tagged union over string, binary, 64-bit signed
// integer, 64-bit float and bool. The zero Value is KindNone, i.e. absent;
// it is never equal to Bool(false) or String("").
type Value struct {
	kind Kind
	s    string
	bin  []byte
	i    int64
	f    float64
	b    bool
}

func String(s string) Value  { return Value{kind: KindString, s: s} }
func Binary(b []byte) Value  { return Value{kind: KindBinary, bin: append([]byte(nil), b...)} }
func Integer(i int64) Value  { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNone() bool { return v.kind == KindNone }

// AsString, AsBinary, AsInteger, AsFloat, AsBool return the payload and
// whether the Value actually holds that variant.
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBinary() ([]byte, bool)   { return v.bin, v.kind == KindBinary }
func (v Value) AsInteger() (int64, bool)   { return v.i, v.kind == KindInteger }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	case KindBinary:
		return fmt.Sprintf("Binary(%d bytes)", len(v.bin))
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("Float(%v)", v.f)
	case KindBool:
		return fmt.Sprintf("Bool(%v)", v.b)
	default:
		return "None"
	}
}

// valueBody returns the tag/value fields that make up a Value
// submessage, without any outer wrapping tag.
func valueBody(v Value) []byte {
	if v.kind == KindNone {
		return nil
	}
	var inner []byte
	switch v.kind {
	case KindString:
		inner = protowire.AppendTag(inner, fieldValueString, protowire.BytesType)
		inner = protowire.AppendString(inner, v.s)
	case KindBinary:
		inner = protowire.AppendTag(inner, fieldValueBinary, protowire.BytesType)
		inner = protowire.AppendBytes(inner, v.bin)
	case KindInteger:
		inner = protowire.AppendTag(inner, fieldValueInteger, protowire.VarintType)
		inner = protowire.AppendVarint(inner, protowire.EncodeZigZag(v.i))
	case KindFloat:
		inner = protowire.AppendTag(inner, fieldValueFloat, protowire.Fixed64Type)
		inner = protowire.AppendFixed64(inner, math.Float64bits(v.f))
	case KindBool:
		inner = protowire.AppendTag(inner, fieldValueBool, protowire.VarintType)
		var bv uint64
		if v.b {
			bv = 1
		}
		inner = protowire.AppendVarint(inner, bv)
	}
	return inner
}

// appendValue appends a length-delimited Value submessage for field num.
// A KindNone value is still emitted, as a zero-length submessage: in a
// repeated Value field (CommandResponse.values, Publish.data) omitting
// the entry outright would shift every later entry's position, breaking
// the index correspondence Hmget relies on. An empty submessage
// round-trips back to KindNone.
func appendValue(b []byte, num protowire.Number, v Value) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, valueBody(v))
	return b
}

// MarshalValue encodes a Value on its own, for storage engines that
// persist values outside of any KvPair/Response framing.
func MarshalValue(v Value) []byte { return valueBody(v) }

// UnmarshalValue decodes bytes produced by MarshalValue.
func UnmarshalValue(b []byte) (Value, error) { return consumeValue(b) }

// consumeValue parses a Value submessage body (the bytes inside the
// length-delimited field, not including the outer tag/length).
func consumeValue(body []byte) (Value, error) {
	var v Value
	off := 0
	for off < len(body) {
		num, typ, n := protowire.ConsumeTag(body[off:])
		if n < 0 {
			return v, fmt.Errorf("wire: bad value tag: %w", protowire.ParseError(n))
		}
		off += n
		switch num {
		case fieldValueString:
			s, n := protowire.ConsumeString(body[off:])
			if n < 0 {
				return v, fmt.Errorf("wire: bad value.string: %w", protowire.ParseError(n))
			}
			v = Value{kind: KindString, s: s}
			off += n
		case fieldValueBinary:
			bs, n := protowire.ConsumeBytes(body[off:])
			if n < 0 {
				return v, fmt.Errorf("wire: bad value.binary: %w", protowire.ParseError(n))
			}
			v = Value{kind: KindBinary, bin: append([]byte(nil), bs...)}
			off += n
		case fieldValueInteger:
			u, n := protowire.ConsumeVarint(body[off:])
			if n < 0 {
				return v, fmt.Errorf("wire: bad value.integer: %w", protowire.ParseError(n))
			}
			v = Value{kind: KindInteger, i: protowire.DecodeZigZag(u)}
			off += n
		case fieldValueFloat:
			u, n := protowire.ConsumeFixed64(body[off:])
			if n < 0 {
				return v, fmt.Errorf("wire: bad value.float: %w", protowire.ParseError(n))
			}
			v = Value{kind: KindFloat, f: math.Float64frombits(u)}
			off += n
		case fieldValueBool:
			u, n := protowire.ConsumeVarint(body[off:])
			if n < 0 {
				return v, fmt.Errorf("wire: bad value.bool: %w", protowire.ParseError(n))
			}
			v = Value{kind: KindBool, b: u != 0}
			off += n
		default:
			n := protowire.ConsumeFieldValue(num, typ, body[off:])
			if n < 0 {
				return v, fmt.Errorf("wire: bad value field %d: %w", num, protowire.ParseError(n))
			}
			off += n
		}
	}
	return v, nil
}
